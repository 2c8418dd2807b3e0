package gateway

import (
	"embed"
	"strconv"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

func mustPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

var (
	systemQuestions  = mustPrompt("system_questions.md")
	systemEvaluation = mustPrompt("system_evaluation.md")
	questionsPrompt  = mustPrompt("questions.md")
	evaluationPrompt = mustPrompt("evaluation.md")
)

func systemPrompt(kind Kind) string {
	if kind == KindEvaluation {
		return systemEvaluation
	}
	return systemQuestions
}

func buildQuestionsPrompt(resume string, count int) string {
	prompt := strings.ReplaceAll(questionsPrompt, "{{COUNT}}", strconv.Itoa(count))
	return strings.ReplaceAll(prompt, "{{RESUME}}", strings.TrimSpace(resume))
}

func buildEvaluationPrompt(question string, topics []string, answer string) string {
	topicList := "(not specified)"
	if len(topics) > 0 {
		topicList = "- " + strings.Join(topics, "\n- ")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "(no answer)"
	}

	prompt := strings.ReplaceAll(evaluationPrompt, "{{QUESTION}}", strings.TrimSpace(question))
	prompt = strings.ReplaceAll(prompt, "{{TOPICS}}", topicList)
	return strings.ReplaceAll(prompt, "{{ANSWER}}", answer)
}

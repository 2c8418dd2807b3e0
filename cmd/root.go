package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interview-assistant"
)

type Config struct {
	Interview    *InterviewConfig    `mapstructure:"interview"`
	Providers    *ProvidersConfig    `mapstructure:"providers"`
	Capabilities *CapabilitiesConfig `mapstructure:"capabilities"`
	Speech       *SpeechConfig       `mapstructure:"speech"`
	Server       *ServerConfig       `mapstructure:"server"`
}

type InterviewConfig struct {
	QuestionCount     int           `mapstructure:"question-count"`
	AnswerTimeout     time.Duration `mapstructure:"answer-timeout"`
	SessionTimeout    time.Duration `mapstructure:"session-timeout"`
	EvaluationTimeout time.Duration `mapstructure:"evaluation-timeout"`
	Voice             string        `mapstructure:"voice"`
}

type ProvidersConfig struct {
	AttemptTimeout time.Duration     `mapstructure:"attempt-timeout"`
	RetryTransient bool              `mapstructure:"retry-transient"`
	RetryBackoff   time.Duration     `mapstructure:"retry-backoff"`
	Gemini         *GeminiConfig     `mapstructure:"gemini"`
	OpenRouter     *OpenRouterConfig `mapstructure:"openrouter"`
	Sarvam         *SarvamConfig     `mapstructure:"sarvam"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenRouterConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type SarvamConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language"`
	BaseURL    string `mapstructure:"base-url"`
}

// CapabilitiesConfig lists provider names per capability in fallback order.
type CapabilitiesConfig struct {
	QuestionGeneration []string `mapstructure:"question-generation"`
	Evaluation         []string `mapstructure:"evaluation"`
	Speech             []string `mapstructure:"speech"`
}

type SpeechConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output-dir"`
}

type ServerConfig struct {
	Listen    string        `mapstructure:"listen"`
	Retention time.Duration `mapstructure:"retention"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-assistant runs spoken mock interviews with AI generated questions and feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"providers.gemini.api-key-file":     "GEMINI_API_KEY_FILE",
		"providers.openrouter.api-key-file": "OPENROUTER_API_KEY_FILE",
		"providers.sarvam.api-key-file":     "SARVAM_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-assistant.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("interview.question-count", 5)
	viper.SetDefault("interview.answer-timeout", 60*time.Second)
	viper.SetDefault("interview.session-timeout", time.Duration(0))
	viper.SetDefault("interview.evaluation-timeout", 2*time.Minute)
	viper.SetDefault("interview.voice", "anushka")

	viper.SetDefault("providers.attempt-timeout", 30*time.Second)
	viper.SetDefault("providers.retry-transient", true)
	viper.SetDefault("providers.retry-backoff", 2*time.Second)

	viper.SetDefault("capabilities.question-generation", []string{"gemini", "openrouter"})
	viper.SetDefault("capabilities.evaluation", []string{"gemini", "openrouter"})
	viper.SetDefault("capabilities.speech", []string{"sarvam"})

	viper.SetDefault("speech.enabled", true)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.retention", 15*time.Minute)
}

func initConfig() {
	// Config is needed only by the interview commands.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and environment are enough when no config file was asked for.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

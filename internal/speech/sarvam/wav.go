package sarvam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const riffHeaderSize = 12

// joinWAV merges WAV files into one: the first file's header followed by every file's samples.
// Files are expected to share a format, as the chunks of one response do.
func joinWAV(files [][]byte) ([]byte, error) {
	if len(files) == 0 {
		return nil, errors.New("no audio")
	}

	var header []byte
	var samples bytes.Buffer
	for i, file := range files {
		prefix, data, err := splitWAV(file)
		if err != nil {
			return nil, fmt.Errorf("audio chunk %d: %w", i, err)
		}
		if i == 0 {
			header = prefix
		}
		samples.Write(data)
	}

	out := make([]byte, 0, len(header)+8+samples.Len())
	out = append(out, header...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(samples.Len()))
	out = append(out, samples.Bytes()...)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	return out, nil
}

// splitWAV returns everything before the data chunk and the data chunk's payload.
func splitWAV(file []byte) ([]byte, []byte, error) {
	if len(file) < riffHeaderSize || string(file[0:4]) != "RIFF" || string(file[8:12]) != "WAVE" {
		return nil, nil, errors.New("not a RIFF/WAVE file")
	}

	offset := riffHeaderSize
	for offset+8 <= len(file) {
		id := string(file[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(file[offset+4 : offset+8]))
		body := offset + 8

		if id == "data" {
			// streamed files often carry a placeholder size
			end := body + size
			if size < 0 || end > len(file) || end < body {
				end = len(file)
			}
			return file[:offset], file[body:end], nil
		}

		next := body + size + size%2
		if next <= offset || next > len(file) {
			break
		}
		offset = next
	}
	return nil, nil, errors.New("missing data chunk")
}

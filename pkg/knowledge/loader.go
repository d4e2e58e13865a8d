package knowledge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/models"
)

// LoadStats describes how a corpus load went
type LoadStats struct {
	Loaded  int
	Dropped int
	Missing bool
}

// maxLineBytes bounds one corpus line; longer lines are skipped and counted as dropped
const maxLineBytes = 1024 * 1024

// Load parses "id,question,answer" lines. Quoted fields are honoured and any
// fields after the second delimiter are joined back into the answer. Lines
// that cannot isolate an id and a question from the answer, or that exceed
// maxLineBytes, are dropped.
func Load(r io.Reader) ([]models.KnowledgeRecord, LoadStats, error) {
	var (
		records []models.KnowledgeRecord
		stats   LoadStats
	)

	reader := bufio.NewReaderSize(r, 64*1024)

	first := true
	for {
		raw, tooLong, err := readLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			stats.Loaded = len(records)
			return records, stats, fmt.Errorf("failed to read corpus: %w", err)
		}

		line := strings.TrimSpace(raw)
		switch {
		case tooLong:
			stats.Dropped++
			first = false
		case line != "":
			fields, parseErr := parseLine(line)
			header := first && parseErr == nil && len(fields) >= 3 && isHeader(fields)
			first = false
			if header {
				break
			}
			if record, ok := toRecord(fields, parseErr); ok {
				records = append(records, record)
			} else {
				stats.Dropped++
			}
		}

		if err != nil {
			break
		}
	}

	stats.Loaded = len(records)
	return records, stats, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineBytes is consumed in full but returned empty with tooLong set.
func readLine(reader *bufio.Reader) (string, bool, error) {
	var sb strings.Builder
	tooLong := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if !tooLong {
			sb.Write(chunk)
			tooLong = len(strings.TrimRight(sb.String(), "\r\n")) > maxLineBytes
			if tooLong {
				sb.Reset()
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return "", true, err
		}
		return strings.TrimRight(sb.String(), "\r\n"), false, err
	}
}

func toRecord(fields []string, parseErr error) (models.KnowledgeRecord, bool) {
	if parseErr != nil || len(fields) < 3 {
		return models.KnowledgeRecord{}, false
	}

	id := strings.TrimSpace(fields[0])
	question := strings.TrimSpace(fields[1])
	answer := strings.TrimSpace(strings.Join(fields[2:], ","))
	if id == "" || question == "" {
		return models.KnowledgeRecord{}, false
	}

	return models.KnowledgeRecord{
		ID:                 id,
		Question:           question,
		NormalizedQuestion: Normalize(question),
		Answer:             answer,
	}, true
}

// LoadFile reads the corpus at path. A missing or unreadable corpus degrades
// to an empty knowledge base; the problem is logged and never returned.
func LoadFile(path string, logger *logrus.Logger) []models.KnowledgeRecord {
	f, err := os.Open(path)
	if err != nil {
		entry := logger.WithField("corpus_path", path)
		if errors.Is(err, os.ErrNotExist) {
			entry.Warn("Corpus file not found, starting with an empty knowledge base")
		} else {
			entry.WithError(err).Warn("Failed to open corpus, starting with an empty knowledge base")
		}
		return []models.KnowledgeRecord{}
	}
	defer f.Close()

	records, stats, err := Load(f)
	if err != nil {
		logger.WithError(err).WithField("corpus_path", path).Warn("Corpus read interrupted, keeping records loaded so far")
	}

	entry := logger.WithFields(logrus.Fields{
		"corpus_path": path,
		"loaded":      stats.Loaded,
		"dropped":     stats.Dropped,
	})
	if stats.Dropped > 0 {
		entry.Warn("Dropped malformed corpus lines")
	} else {
		entry.Info("Loaded knowledge corpus")
	}

	if records == nil {
		return []models.KnowledgeRecord{}
	}
	return records
}

func parseLine(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read()
}

func isHeader(fields []string) bool {
	return strings.EqualFold(strings.TrimSpace(fields[0]), "id") &&
		strings.EqualFold(strings.TrimSpace(fields[1]), "question")
}

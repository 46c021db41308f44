package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
)

// ErrInvalidTopic: z topicu nejde bezpečně odvodit jméno služby.
var ErrInvalidTopic = errors.New("invalid log topic")

// ServiceFromTopic vrací jméno služby z "logs/<služba>[/...]".
// Jméno je součástí cesty k souboru, proto nepustíme nic, co by z LOG_DIR uteklo.
func ServiceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q nemá segment služby", ErrInvalidTopic, topic)
	}
	name := parts[1]
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, "\\:\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, name)
	}
	return name, nil
}

// RotationPolicy = nastavení lumberjacku pro každý soubor.
type RotationPolicy struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink drží jeden rotovaný soubor na službu: <dir>/<služba>.log.
// Soubory zůstávají otevřené, rotaci řeší lumberjack sám.
type FileSink struct {
	dir    string
	policy RotationPolicy

	mu      sync.Mutex
	writers map[string]*lumberjack.Logger
}

func NewFileSink(dir string, policy RotationPolicy) *FileSink {
	return &FileSink{dir: dir, policy: policy, writers: make(map[string]*lumberjack.Logger)}
}

func (s *FileSink) writerFor(service string) *lumberjack.Logger {
	w, ok := s.writers[service]
	if !ok {
		w = &lumberjack.Logger{
			Filename:   filepath.Join(s.dir, service+".log"),
			MaxSize:    s.policy.MaxSizeMB,
			MaxBackups: s.policy.MaxBackups,
			MaxAge:     s.policy.MaxAgeDays,
			Compress:   s.policy.Compress,
		}
		s.writers[service] = w
	}
	return w
}

// Append připíše řádek do souboru služby. Chybějící '\n' doplní.
func (s *FileSink) Append(service string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.writerFor(service)
	if !bytes.HasSuffix(line, []byte("\n")) {
		line = append(bytes.Clone(line), '\n')
	}
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("zápis do %s: %w", w.Filename, err)
	}
	return nil
}

// Services vrací jména služeb, pro které už máme otevřený soubor.
func (s *FileSink) Services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.writers))
	for name := range s.writers {
		names = append(names, name)
	}
	return names
}

// Close zavře všechny soubory.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, w := range s.writers {
		errs = append(errs, w.Close())
	}
	s.writers = make(map[string]*lumberjack.Logger)
	return errors.Join(errs...)
}

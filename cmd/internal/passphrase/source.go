package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when a confirmed prompt receives two different
// answers.
var ErrMismatch = errors.New("passphrases do not match")

// Source resolves a keystore passphrase once, from an environment variable or
// a terminal prompt, and caches the outcome.
type Source struct {
	envVar  string
	label   string
	confirm bool
	// prompt reads one secret after printing the message. Tests replace it.
	prompt func(message string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource returns a Source that checks envVar before prompting. label names
// the secret in prompts and errors.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore passphrase"
	}
	return &Source{envVar: strings.TrimSpace(envVar), label: label, prompt: terminalPrompt}
}

// WithConfirm makes an interactive prompt ask twice. Use it when the secret
// seals a new keystore.
func (s *Source) WithConfirm() *Source {
	s.confirm = true
	return s
}

// Get returns the passphrase, resolving it on the first call.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}

	first, err := s.prompt(fmt.Sprintf("Enter %s: ", s.label))
	if err != nil {
		if s.envVar != "" {
			return "", fmt.Errorf("%s required; set %s or run interactively: %w", s.label, s.envVar, err)
		}
		return "", fmt.Errorf("%s required: %w", s.label, err)
	}
	if strings.TrimSpace(first) == "" {
		return "", fmt.Errorf("%s cannot be empty", s.label)
	}
	if !s.confirm {
		return first, nil
	}
	second, err := s.prompt(fmt.Sprintf("Repeat %s: ", s.label))
	if err != nil {
		return "", err
	}
	if second != first {
		return "", ErrMismatch
	}
	return first, nil
}

func terminalPrompt(message string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available")
	}
	fmt.Fprint(os.Stderr, message)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}

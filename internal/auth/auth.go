// Package auth resolves the bearer token sent to collection APIs.
// Tokens come from a small chain of providers: an explicit value from the
// config file, the COLSYNC_TOKEN environment variable, or an external
// command such as `gh auth token`.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvToken is the environment variable read by EnvProvider.
const EnvToken = "COLSYNC_TOKEN"

// ErrNoToken is returned by a provider that has no token to offer.
var ErrNoToken = errors.New("no token")

// TokenProvider defines the interface for obtaining an API token.
type TokenProvider interface {
	GetToken() (string, error)
}

// StaticProvider returns a token configured up front.
type StaticProvider struct {
	Token string
}

// GetToken returns the configured token.
func (s *StaticProvider) GetToken() (string, error) {
	if s.Token == "" {
		return "", fmt.Errorf("config token: %w", ErrNoToken)
	}
	return s.Token, nil
}

// EnvProvider obtains tokens from the COLSYNC_TOKEN environment variable.
type EnvProvider struct{}

// GetToken reads the COLSYNC_TOKEN environment variable.
func (e *EnvProvider) GetToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(EnvToken))
	if token == "" {
		return "", fmt.Errorf("%s environment variable not set or empty: %w", EnvToken, ErrNoToken)
	}
	return token, nil
}

// CommandProvider obtains tokens by running an external command and reading
// its standard output, e.g. []string{"gh", "auth", "token"}.
type CommandProvider struct {
	Command []string
}

// GetToken runs the command and returns its trimmed output.
func (c *CommandProvider) GetToken() (string, error) {
	if len(c.Command) == 0 {
		return "", fmt.Errorf("token command: %w", ErrNoToken)
	}
	cmd := exec.Command(c.Command[0], c.Command[1:]...)
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", fmt.Errorf("token command %s not found in PATH", c.Command[0])
		}
		return "", fmt.Errorf("token command %s failed: %w", c.Command[0], err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("token command %s returned empty token", c.Command[0])
	}
	return token, nil
}

// Chain tries each provider in order and returns the first token found.
type Chain []TokenProvider

// GetToken implements TokenProvider.
func (c Chain) GetToken() (string, error) {
	var errs []error
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("failed to obtain API token: %w", errors.Join(errs...))
}

// GetToken resolves a token using the following strategy:
//  1. the token from the config file, if any
//  2. the COLSYNC_TOKEN environment variable
//  3. the configured token command, if any
//
// An empty token with a nil error means no provider is configured and
// requests go out unauthenticated.
func GetToken(configured string, command []string) (string, error) {
	chain := Chain{&StaticProvider{Token: configured}, &EnvProvider{}}
	if len(command) > 0 {
		chain = append(chain, &CommandProvider{Command: command})
	}
	token, err := chain.GetToken()
	if err != nil && len(command) == 0 {
		return "", nil
	}
	return token, err
}

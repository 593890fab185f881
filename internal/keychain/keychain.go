// Package keychain stores the bot token in the system keychain.
package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName  = "plugwire"
	tokenAccount = "telegram-bot-token"
)

// ErrNotFound is returned when no token has been stored.
var ErrNotFound = errors.New("keychain: token not found")

// BotToken returns the stored Telegram bot token.
func BotToken() (string, error) {
	token, err := keyring.Get(serviceName, tokenAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain: read token: %w", err)
	}
	return token, nil
}

// SetBotToken stores token, replacing any previous value.
func SetBotToken(token string) error {
	if token == "" {
		return errors.New("keychain: empty token")
	}
	if err := keyring.Set(serviceName, tokenAccount, token); err != nil {
		return fmt.Errorf("keychain: store token: %w", err)
	}
	return nil
}

// DeleteBotToken removes the stored token. Deleting a missing token is not
// an error.
func DeleteBotToken() error {
	err := keyring.Delete(serviceName, tokenAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain: delete token: %w", err)
	}
	return nil
}

// ResolveToken returns configured when it is set, otherwise the stored token.
func ResolveToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return BotToken()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: the local passphrase is prompted at runtime - use GetPassphraseBytes()
type Config struct {
	WalletFilePath string `envconfig:"TON_WALLET_FILE" default:"wallet.cwt"`
	RPCURL         string `envconfig:"TON_RPC_URL" default:"https://toncenter.com/api/v2/jsonRPC"`
	RPCAPIKey      string `envconfig:"TON_RPC_API_KEY"`
	TokensFile     string `envconfig:"TON_TOKENS_FILE"`
	VaultSecret    string `envconfig:"KEY_VAULT_SECRET" required:"true"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	RetryAttempts uint          `envconfig:"RPC_RETRY_ATTEMPTS" default:"3"`
	RetryBase     time.Duration `envconfig:"RPC_RETRY_BASE" default:"1s"`

	ConfirmInterval time.Duration `envconfig:"CONFIRM_INTERVAL" default:"3s"`
	ConfirmAttempts int           `envconfig:"CONFIRM_ATTEMPTS" default:"10"`

	NetworkFee  string `envconfig:"NETWORK_FEE_TON" default:"0.05"`
	ProtocolFee string `envconfig:"PROTOCOL_FEE_TON" default:"0.25"`
	SlippageBps uint   `envconfig:"SLIPPAGE_BPS" default:"100"`

	PriceURL      string        `envconfig:"PRICE_URL" default:"https://api.coingecko.com/api/v3"`
	PriceCurrency string        `envconfig:"PRICE_CURRENCY" default:"usd"`
	PriceTTL      time.Duration `envconfig:"PRICE_TTL" default:"1m"`
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.RetryAttempts == 0 {
		return errors.New("RPC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.ConfirmAttempts <= 0 {
		return errors.New("CONFIRM_ATTEMPTS must be positive")
	}
	if c.SlippageBps >= 10000 {
		return errors.New("SLIPPAGE_BPS must be below 10000")
	}
	return nil
}

// cfg is the global configuration instance
var cfg *Config

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Init loads configuration into the global instance.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

var passphraseBytes []byte

// PromptForPassphrase prompts the user for the wallet passphrase in the terminal.
// The passphrase is read without echoing and kept in memory; it is the vault context
// for the local wallet file.
func PromptForPassphrase(prompt string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("passphrase cannot be empty")
	}

	clear(passphraseBytes)
	passphraseBytes = make([]byte, len(raw))
	copy(passphraseBytes, raw)
	clear(raw)
	return nil
}

// GetPassphraseBytes returns a copy of the passphrase stored by PromptForPassphrase.
// Caller must zero the returned slice after use.
func GetPassphraseBytes() ([]byte, error) {
	if len(passphraseBytes) == 0 {
		return nil, errors.New("passphrase not set: call PromptForPassphrase first")
	}
	out := make([]byte, len(passphraseBytes))
	copy(out, passphraseBytes)
	return out, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/spf13/viper"
	"github.com/tonkeeper/tongo"
)

// JettonConfig is one tracked jetton in the tokens file.
type JettonConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Master   string `mapstructure:"master"`
	Decimals int32  `mapstructure:"decimals"`
	Pool     string `mapstructure:"pool"`
}

type tokensFile struct {
	Jettons []JettonConfig `mapstructure:"jettons"`
}

// DefaultJettons is used when no tokens file is configured.
var DefaultJettons = []JettonConfig{
	{
		Symbol:   "USDT",
		Master:   "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs",
		Decimals: 6,
	},
}

// LoadTokens reads the tracked jetton list from a YAML/JSON/TOML file.
// An empty path yields DefaultJettons.
func LoadTokens(path string) ([]model.Asset, error) {
	if path == "" {
		return ParseJettons(DefaultJettons)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}

	var tf tokensFile
	if err := v.Unmarshal(&tf); err != nil {
		return nil, fmt.Errorf("failed to decode tokens file: %w", err)
	}

	return ParseJettons(tf.Jettons)
}

// ParseJettons validates jetton configs and converts them to assets.
func ParseJettons(jettons []JettonConfig) ([]model.Asset, error) {
	assets := make([]model.Asset, 0, len(jettons))
	seen := make(map[string]bool, len(jettons))

	for _, j := range jettons {
		symbol := strings.ToUpper(strings.TrimSpace(j.Symbol))
		if symbol == "" {
			return nil, errors.New("jetton symbol cannot be empty")
		}
		if symbol == model.NativeSymbol {
			return nil, fmt.Errorf("jetton symbol %s is reserved", symbol)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("duplicate jetton %s", symbol)
		}
		seen[symbol] = true

		if j.Decimals < 0 || j.Decimals > 18 {
			return nil, fmt.Errorf("jetton %s: decimals must be in [0, 18]", symbol)
		}

		master, err := tongo.ParseAccountID(j.Master)
		if err != nil {
			return nil, fmt.Errorf("jetton %s: invalid master address: %w", symbol, err)
		}

		asset := model.Asset{
			Kind:     model.AssetJetton,
			Symbol:   symbol,
			Decimals: j.Decimals,
			Master:   master,
		}

		if j.Pool != "" {
			pool, err := tongo.ParseAccountID(j.Pool)
			if err != nil {
				return nil, fmt.Errorf("jetton %s: invalid pool address: %w", symbol, err)
			}
			asset.Pool = &pool
		}

		assets = append(assets, asset)
	}

	return assets, nil
}

package model

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network names the Bitcoin chain a contract lives on.
type Network string

var (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

// ParseNetwork normalises the aliases accepted on command lines and in invoices.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "main", "mainnet", "bitcoin":
		return Mainnet, nil
	case "testnet", "testnet3":
		return Testnet, nil
	case "regtest":
		return Regtest, nil
	case "signet":
		return Signet, nil
	default:
		return "", fmt.Errorf("unsupported network %q", s)
	}
}

// Params returns the btcd chain parameters for n.
func (n Network) Params() (*chaincfg.Params, error) {
	canonical, err := ParseNetwork(string(n))
	if err != nil {
		return nil, err
	}
	switch canonical {
	case Mainnet:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return &chaincfg.SigNetParams, nil
	}
}

// NetworkOf maps chain parameters back to a Network.
func NetworkOf(params *chaincfg.Params) (Network, error) {
	switch params.Net {
	case chaincfg.MainNetParams.Net:
		return Mainnet, nil
	case chaincfg.TestNet3Params.Net:
		return Testnet, nil
	case chaincfg.RegressionNetParams.Net:
		return Regtest, nil
	case chaincfg.SigNetParams.Net:
		return Signet, nil
	default:
		return "", fmt.Errorf("unsupported chain %q", params.Name)
	}
}

package invoice

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

const (
	dataPrefix          = "hex:"
	witnessOutputPrefix = "witness-output:"

	paramExpiry    = "expiry"
	paramNetwork   = "network"
	paramEndpoints = "endpoints"
)

var endpointSchemes = map[string]bool{
	"rpc": true, "rpcs": true,
	"http": true, "https": true,
	"ws": true, "wss": true,
	"storm": true,
}

// addressNetworks is the order tried when the invoice carries no network parameter.
var addressNetworks = []model.Network{model.Mainnet, model.Testnet, model.Regtest, model.Signet}

// Parse decodes an invoice string.
func Parse(s string) (Invoice, error) {
	var inv Invoice
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return inv, fmt.Errorf("%w: %q", ErrUnsupportedScheme, prefixOf(s))
	}

	path, rawQuery, _ := strings.Cut(rest, "?")
	if err := inv.parseQuery(rawQuery); err != nil {
		return Invoice{}, err
	}

	segments := strings.Split(path, "/")
	if len(segments) < 3 || len(segments) > 5 {
		return Invoice{}, malformed("expected 3 to 5 path segments, got %d", len(segments))
	}

	if segments[0] != "~" {
		id, err := model.ParseContractID(segments[0])
		if err != nil {
			if errors.Is(err, model.ErrChecksumMismatch) {
				return Invoice{}, fmt.Errorf("contract id: %w", ErrChecksumMismatch)
			}
			return Invoice{}, malformed("contract id %q", segments[0])
		}
		inv.Contract = &id
	}

	var err error
	if inv.Interface, err = unsegment(segments[1]); err != nil {
		return Invoice{}, err
	}
	if inv.Contract != nil && inv.Interface == "" {
		return Invoice{}, malformed("contract id without interface")
	}
	if len(segments) >= 4 {
		if inv.Operation, err = unsegment(segments[2]); err != nil {
			return Invoice{}, err
		}
	}
	if len(segments) == 5 {
		if segments[3] == "~" || segments[3] == "" {
			return Invoice{}, malformed("empty assignment segment")
		}
		if inv.Assignment, err = url.PathUnescape(segments[3]); err != nil {
			return Invoice{}, malformed("assignment: %v", err)
		}
	}

	last := segments[len(segments)-1]
	if state, beneficiary, found := strings.Cut(last, "+"); found {
		if inv.State, err = parseState(state); err != nil {
			return Invoice{}, err
		}
		last = beneficiary
	}
	if inv.Beneficiary, err = parseBeneficiary(last, inv.Network); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (inv *Invoice) parseQuery(raw string) error {
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return malformed("query key %q", rawKey)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return malformed("query value %q", rawValue)
		}

		switch key {
		case paramExpiry:
			if inv.Expiry != nil {
				return malformed("duplicate expiry")
			}
			secs, err := strconv.ParseInt(value, 10, 64)
			if err != nil || secs < 0 {
				return malformed("expiry %q", value)
			}
			expiry := time.Unix(secs, 0).UTC()
			inv.Expiry = &expiry
		case paramNetwork:
			if inv.Network != "" {
				return malformed("duplicate network")
			}
			network, err := model.ParseNetwork(value)
			if err != nil || string(network) != value {
				return malformed("network %q", value)
			}
			inv.Network = network
		case paramEndpoints:
			if inv.Endpoints != nil {
				return malformed("duplicate endpoints")
			}
			for _, ep := range strings.Split(value, ",") {
				if err := checkEndpoint(ep); err != nil {
					return err
				}
				inv.Endpoints = append(inv.Endpoints, ep)
			}
		default:
			inv.Unknown = append(inv.Unknown, QueryParam{Key: key, Value: value})
		}
	}
	return nil
}

func (inv Invoice) query() string {
	var parts []string
	if inv.Expiry != nil {
		parts = append(parts, paramExpiry+"="+strconv.FormatInt(inv.Expiry.Unix(), 10))
	}
	if inv.Network != "" {
		parts = append(parts, paramNetwork+"="+url.QueryEscape(string(inv.Network)))
	}
	if len(inv.Endpoints) > 0 {
		escaped := make([]string, len(inv.Endpoints))
		for i, ep := range inv.Endpoints {
			escaped[i] = url.QueryEscape(ep)
		}
		parts = append(parts, paramEndpoints+"="+strings.Join(escaped, ","))
	}
	for _, p := range inv.Unknown {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

func checkEndpoint(ep string) error {
	u, err := url.Parse(ep)
	if err != nil || !endpointSchemes[u.Scheme] {
		return malformed("endpoint %q", ep)
	}
	if u.Scheme == "storm" {
		if u.Host != "_" {
			return malformed("storm endpoint %q must use host _", ep)
		}
		return nil
	}
	if u.Host == "" {
		return malformed("endpoint %q has no host", ep)
	}
	return nil
}

func parseState(s string) (State, error) {
	if raw, ok := strings.CutPrefix(s, dataPrefix); ok {
		data, err := hex.DecodeString(raw)
		if err != nil || len(data) == 0 {
			return State{}, malformed("data state %q", s)
		}
		return State{Kind: StateData, Data: data}, nil
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil || amount == 0 || strconv.FormatUint(amount, 10) != s {
		return State{}, malformed("amount %q", s)
	}
	return State{Kind: StateAmount, Amount: amount}, nil
}

func parseBeneficiary(s string, network model.Network) (Beneficiary, error) {
	if s == "" {
		return Beneficiary{}, malformed("missing beneficiary")
	}
	if rest, ok := strings.CutPrefix(s, witnessOutputPrefix); ok {
		txid, voutStr, found := strings.Cut(rest, ":")
		if !found {
			return Beneficiary{}, malformed("witness output %q", s)
		}
		vout, err := strconv.ParseUint(voutStr, 10, 32)
		if err != nil {
			return Beneficiary{}, malformed("witness output index %q", voutStr)
		}
		if txid == "~" {
			return Beneficiary{Kind: BeneficiaryWitnessOutput, Vout: uint32(vout)}, nil
		}
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil || len(txid) != 2*chainhash.HashSize {
			return Beneficiary{}, malformed("witness output txid %q", txid)
		}
		return Beneficiary{
			Kind:     BeneficiaryOutpoint,
			Outpoint: wire.OutPoint{Hash: *hash, Index: uint32(vout)},
		}, nil
	}

	addr, err := decodeAddress(s, network)
	if err != nil {
		return Beneficiary{}, err
	}
	return Beneficiary{Kind: BeneficiaryAddress, Address: addr}, nil
}

func decodeAddress(s string, network model.Network) (btcutil.Address, error) {
	if network != "" {
		params, err := network.Params()
		if err != nil {
			return nil, malformed("network %q", network)
		}
		if addr, ok := addressFor(s, params); ok {
			return addr, nil
		}
		for _, other := range addressNetworks {
			otherParams, _ := other.Params()
			if _, ok := addressFor(s, otherParams); ok {
				return nil, fmt.Errorf("%w: %s is a %s address, invoice says %s", ErrNetworkMismatch, s, other, network)
			}
		}
		return nil, malformed("beneficiary %q", s)
	}
	for _, n := range addressNetworks {
		params, _ := n.Params()
		if addr, ok := addressFor(s, params); ok {
			return addr, nil
		}
	}
	return nil, malformed("beneficiary %q", s)
}

func addressFor(s string, params *chaincfg.Params) (btcutil.Address, bool) {
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil || !addr.IsForNet(params) {
		return nil, false
	}
	return addr, true
}

func unsegment(s string) (string, error) {
	if s == "~" {
		return "", nil
	}
	if s == "" {
		return "", malformed("empty path segment")
	}
	v, err := url.PathUnescape(s)
	if err != nil {
		return "", malformed("segment %q: %v", s, err)
	}
	return v, nil
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func prefixOf(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i+1]
	}
	return s
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInvoice, fmt.Sprintf(format, args...))
}

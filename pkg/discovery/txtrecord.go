package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// TXTRecordMap is a map of TXT record key-value pairs. Keys are lower case.
type TXTRecordMap map[string]string

// ServiceInfo is the decoded TXT record of a megaphone service.
type ServiceInfo struct {
	Path     string
	Protocol string
	Features wire.Features
	TLS      bool
}

// EncodeServiceTXT creates the TXT record a server advertises.
func EncodeServiceTXT(info *ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion:  TXTVersion,
		TXTKeyProtocol: wire.ProtocolHTTPStreamNDJSONV1,
		TXTKeyFeatures: strconv.FormatUint(uint64(info.Features|wire.FeatureChanChunkedStream), 10),
	}
	if info.Path != "" && info.Path != "/" {
		txt[TXTKeyPath] = info.Path
	}
	if info.Protocol != "" {
		txt[TXTKeyProtocol] = info.Protocol
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	return txt
}

// DecodeServiceTXT parses and checks the TXT record of a megaphone service.
// Missing keys take their defaults.
func DecodeServiceTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	if v, ok := txt[TXTKeyVersion]; ok && v != TXTVersion {
		return nil, fmt.Errorf("%w: txtvers %q", ErrUnsupported, v)
	}

	info := &ServiceInfo{
		Path:     "/",
		Protocol: wire.ProtocolHTTPStreamNDJSONV1,
		Features: wire.FeatureChanChunkedStream,
	}
	if p := txt[TXTKeyProtocol]; p != "" {
		if p != wire.ProtocolHTTPStreamNDJSONV1 {
			return nil, fmt.Errorf("%w: protocol %q", ErrUnsupported, p)
		}
		info.Protocol = p
	}
	if p := strings.TrimSpace(txt[TXTKeyPath]); p != "" {
		info.Path = "/" + strings.Trim(p, "/")
	}
	if f, ok := txt[TXTKeyFeatures]; ok {
		bits, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: feat %q", ErrUnsupported, f)
		}
		info.Features = wire.Features(bits)
		if !info.Features.Has(wire.FeatureChanChunkedStream) {
			return nil, fmt.Errorf("%w: channels do not stream chunked reads", ErrUnsupported)
		}
	}
	switch txt[TXTKeyTLS] {
	case "", "0":
	case "1":
		info.TLS = true
	default:
		return nil, fmt.Errorf("%w: tls %q", ErrUnsupported, txt[TXTKeyTLS])
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings in key
// order, the form zeroconf expects.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+txt[k])
	}
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap. A bare
// key is a boolean flag with an empty value. The first occurrence of a key
// wins, as DNS-SD requires.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		key, value, _ := strings.Cut(s, "=")
		key = strings.ToLower(key)
		if key == "" {
			continue
		}
		if _, dup := txt[key]; dup {
			continue
		}
		txt[key] = value
	}
	return txt
}

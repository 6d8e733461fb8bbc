package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

func TestDecodeServiceTXT(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		want    ServiceInfo
		wantErr bool
	}{
		{
			name: "defaults",
			txt:  TXTRecordMap{},
			want: ServiceInfo{Path: "/", Protocol: wire.ProtocolHTTPStreamNDJSONV1, Features: wire.FeatureChanChunkedStream},
		},
		{
			name: "path normalized",
			txt:  TXTRecordMap{TXTKeyPath: "megaphone/"},
			want: ServiceInfo{Path: "/megaphone", Protocol: wire.ProtocolHTTPStreamNDJSONV1, Features: wire.FeatureChanChunkedStream},
		},
		{
			name: "tls",
			txt:  TXTRecordMap{TXTKeyVersion: "1", TXTKeyTLS: "1", TXTKeyProtocol: wire.ProtocolHTTPStreamNDJSONV1},
			want: ServiceInfo{Path: "/", Protocol: wire.ProtocolHTTPStreamNDJSONV1, Features: wire.FeatureChanChunkedStream, TLS: true},
		},
		{name: "other protocol", txt: TXTRecordMap{TXTKeyProtocol: "WEBSOCKET_V2"}, wantErr: true},
		{name: "future layout", txt: TXTRecordMap{TXTKeyVersion: "2"}, wantErr: true},
		{name: "bad tls flag", txt: TXTRecordMap{TXTKeyTLS: "yes"}, wantErr: true},
		{name: "no chunked streams", txt: TXTRecordMap{TXTKeyFeatures: "2"}, wantErr: true},
		{name: "bad features", txt: TXTRecordMap{TXTKeyFeatures: "x"}, wantErr: true},
		{
			name: "extra features",
			txt:  TXTRecordMap{TXTKeyFeatures: "3"},
			want: ServiceInfo{Path: "/", Protocol: wire.ProtocolHTTPStreamNDJSONV1, Features: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := DecodeServiceTXT(tt.txt)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *info)
		})
	}
}

func TestServiceTXTRoundTrip(t *testing.T) {
	in := &ServiceInfo{Path: "/poll", TLS: true}
	strs := TXTRecordsToStrings(EncodeServiceTXT(in))
	assert.Equal(t, []string{"feat=1", "path=/poll", "proto=" + wire.ProtocolHTTPStreamNDJSONV1, "tls=1", "txtvers=1"}, strs)

	out, err := DecodeServiceTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, "/poll", out.Path)
	assert.True(t, out.TLS)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"Path=/a", "path=/b", "flag", "=orphan", "kv=a=b"})
	assert.Equal(t, TXTRecordMap{"path": "/a", "flag": "", "kv": "a=b"}, txt)
}

func TestServiceBaseURL(t *testing.T) {
	tests := []struct {
		name string
		svc  Service
		want string
	}{
		{
			name: "prefers ipv4",
			svc:  Service{Port: 8080, Path: "/mp", Host: "box.local", Addresses: []string{"fd00::5", "192.168.1.20"}},
			want: "http://192.168.1.20:8080/mp",
		},
		{
			name: "ipv6 bracketed",
			svc:  Service{Port: 8080, Path: "/", Addresses: []string{"fe80::1", "fd00::5"}},
			want: "http://[fd00::5]:8080",
		},
		{
			name: "host fallback with tls",
			svc:  Service{Port: 443, Path: "/", TLS: true, Host: "box.local", Addresses: []string{"fe80::1"}},
			want: "https://box.local:443",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.svc.BaseURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := (&Service{Instance: "x", Port: 80}).BaseURL()
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestNewService(t *testing.T) {
	svc, err := NewService("kitchen", "box.local.", 8080, []string{"10.0.0.2"}, TXTRecordMap{TXTKeyPath: "/mp"})
	require.NoError(t, err)
	assert.Equal(t, "box.local", svc.Host)
	assert.Equal(t, uint16(8080), svc.Port)
	assert.Equal(t, "kitchen (http://10.0.0.2:8080/mp)", svc.String())

	_, err = NewService("kitchen", "box.local.", 0, nil, TXTRecordMap{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestAggregator(t *testing.T) {
	agg := newAggregator()

	first := &Service{Instance: "a", Addresses: []string{"10.0.0.1"}}
	assert.True(t, agg.add(first))
	assert.False(t, agg.add(&Service{Instance: "a", Addresses: []string{"10.0.0.1", "fd00::1"}}))
	assert.Equal(t, []string{"10.0.0.1", "fd00::1"}, agg.addresses("a"))
	assert.Equal(t, []string{"10.0.0.1"}, first.Addresses, "reported service must not change")

	agg.remove("a", []string{"10.0.0.1"})
	assert.Equal(t, []string{"fd00::1"}, agg.addresses("a"))

	agg.remove("a", []string{"fd00::1"})
	assert.Nil(t, agg.addresses("a"))
	assert.True(t, agg.add(&Service{Instance: "a", Addresses: []string{"10.0.0.3"}}), "forgotten instance is new again")

	agg.remove("unknown", []string{"10.0.0.3"})
}

func entry(instance string, port int, ip string, text ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: Domain},
	}
	e.HostName = instance + ".local."
	e.Port = port
	e.Text = text
	e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	return e
}

// fakeBrowse replays entries then blocks until ctx is done, like zeroconf.Browse.
func fakeBrowse(found ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, service, domain string, entries, removed chan<- *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
		for _, e := range found {
			select {
			case entries <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return nil
	}
}

func newTestBrowser(browse browseFunc) *MDNSBrowser {
	b := NewMDNSBrowser(BrowserConfig{Timeout: 200 * time.Millisecond})
	b.browse = browse
	return b
}

func TestBrowse(t *testing.T) {
	b := newTestBrowser(fakeBrowse(
		entry("a", 8080, "10.0.0.1", "path=/mp"),
		entry("bad", 8080, "10.0.0.9", "proto=OTHER"),
		entry("a", 8080, "10.0.0.2", "path=/mp"),
		entry("b", 9090, "10.0.0.3"),
	))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results, err := b.Browse(ctx)
	require.NoError(t, err)

	var got []string
	for svc := range results {
		got = append(got, svc.Instance)
		if len(got) == 2 {
			cancel()
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestFind(t *testing.T) {
	b := newTestBrowser(fakeBrowse(
		entry("a", 8080, "10.0.0.1"),
		entry("b", 9090, "10.0.0.3", "path=/poll"),
	))

	svc, err := b.Find(context.Background(), "b")
	require.NoError(t, err)
	url, err := svc.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.3:9090/poll", url)

	svc, err = b.Find(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "a", svc.Instance)
}

func TestFindTimesOut(t *testing.T) {
	b := newTestBrowser(fakeBrowse(entry("a", 8080, "10.0.0.1")))

	start := time.Now()
	_, err := b.Find(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBrowseUnknownInterface(t *testing.T) {
	b := NewMDNSBrowser(BrowserConfig{Interface: "no-such-iface0"})
	_, err := b.Browse(context.Background())
	assert.Error(t, err)
}

func TestDefaultBrowserConfig(t *testing.T) {
	cfg := DefaultBrowserConfig()
	assert.Equal(t, ServiceType, cfg.Service)
	assert.Equal(t, DefaultBrowseTimeout, cfg.Timeout)
}

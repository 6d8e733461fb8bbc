package wire

// ProtocolHTTPStreamNDJSONV1 names the chunked NDJSON long-poll protocol
// spoken by channel readers.
const ProtocolHTTPStreamNDJSONV1 = "HTTP_STREAM_NDJSON_V1"

// ContentType is the media type requested from the channel endpoint.
const ContentType = "application/x-ndjson"

// Features is the channel feature bitmap advertised by the service.
type Features uint32

const (
	// FeatureChanChunkedStream indicates the channel streams chunked reads.
	FeatureChanChunkedStream Features = 1 << 0
)

// Has reports whether all bits of f2 are set in f.
func (f Features) Has(f2 Features) bool {
	return f&f2 == f2
}

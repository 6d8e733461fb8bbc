// Package discovery locates megaphone servers on the local network with
// mDNS/DNS-SD.
//
// Servers advertise the _megaphone._tcp service. The instance name is free
// form; the TXT record carries:
//
//   - txtvers: TXT layout version (currently 1)
//   - path: long-poll root below the host (default "/")
//   - proto: streaming protocol, HTTP_STREAM_NDJSON_V1 when present
//   - feat: channel feature bitmap in decimal; must include chunked streams
//   - tls: "1" when the server only speaks HTTPS
//
// A discovered Service resolves to the base URL the client polls, e.g.
// http://192.168.1.20:8080/megaphone.
package discovery

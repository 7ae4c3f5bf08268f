package gateway

import "net/url"

// mustHost reduces a configured URL (e.g. "http://127.0.0.1:8787") to the
// bare "host:port" http.Server.Addr expects. A value with no scheme is
// assumed to already be in that form.
func mustHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

/*
Package registrar implements the Connection Registrar: the one HTTP
surface a started scheduler or worker process phones home to once it has
bound its addresses. It is deliberately small — four routes, one auth
middleware — compared to the teacher's gRPC+mTLS worker-agent protocol,
because this spec's external API surface is out of scope beyond this
handshake.

Routing uses gorilla/mux, the one router shown anywhere in the example
pack with a plain net/http (non-gRPC) server. Authentication is a bearer
token compared in constant time against a per-cluster token resolved
through the injected Registry's TokenFor, mirroring the header-gate middleware
pattern of constant-time shared-secret comparison.
*/
package registrar

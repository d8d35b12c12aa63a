// Package tlsroots loads TLS material for chaingate.
//
// The server side is a Reloader: it serves the key pair named in
// server.tls_cert_file and server.tls_key_file and picks up replacements
// without a restart. The client side is Pool, the set of roots
// chaingate-cli trusts when it talks to an https server.
package tlsroots

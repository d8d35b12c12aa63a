// Package localserver binds the local command socket.
//
// The socket is a second listener for the same worker pool as the TCP
// address, so it speaks the same HTTP and WebSocket surfaces. Access is
// controlled by file system permissions on the socket file.
//
// chaingate-cli reaches it with --server unix:///path/to/chaingate.sock.
package localserver

// Package shellinabox implements the client side of the ShellInABox
// long-polling protocol.
//
// A ShellInABox instance exposes one URL. Every operation is a POST with
// an urlencoded form body:
//
//	open:  width, height, rooturl          -> {"session": "<id>"}
//	poll:  width, height, session          -> {"data": "<terminal output>"}
//	send:  width, height, session, keys    -> HTML page titled "OK"
//
// keys carries the lowercase hex encoding of the raw keystroke bytes. The
// server holds a poll request open until output is available, so Poll has
// no client-side timeout and is cancelled through its context only.
//
// # ERRORS
//
// Every failure is one of:
//   - *TransportError: no HTTP response (DNS, connect, TLS)
//   - *HTTPStatusError: non-2xx status
//   - *ProtocolError: 2xx with a body of the wrong shape
//
// ShellInABox answers 400 or 500 once a session has ended on the remote
// side; IsSessionClosed detects that case.
package shellinabox

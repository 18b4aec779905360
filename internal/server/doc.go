// Package server accepts TCP connections and hands each one to a worker pool.
//
// Every connection becomes one job. The job reads a single request line and
// answers from a small fixed route table:
//
//   - "GET / HTTP/1.1" returns hello.html with 200 OK
//   - "GET /sleep HTTP/1.1" waits SleepDelay, then returns hello.html
//   - anything else returns 404.html with 404 NOT FOUND
//
// Pages come from Config.DocRoot when set, otherwise from embedded defaults.
// I/O errors are logged and end only the connection that hit them.
package server

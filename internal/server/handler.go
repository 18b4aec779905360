package server

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strings"
	"time"

	"taskpool/internal/logger"
)

//go:embed static/*
var staticFiles embed.FS

const (
	RequestRoot  = "GET / HTTP/1.1"
	RequestSleep = "GET /sleep HTTP/1.1"

	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND"

	HelloFile    = "hello.html"
	NotFoundFile = "404.html"

	// MaxRequestLine はリクエスト行として読む最大バイト数
	MaxRequestLine = 8 << 10
)

// ErrRequestLineTooLong は改行が MaxRequestLine 以内に来なかったことを示す
var ErrRequestLineTooLong = errors.New("request line too long")

// DefaultFiles は埋め込みのデフォルトページを返す
func DefaultFiles() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// static/* は必ず埋め込まれている
		panic(err)
	}
	return sub
}

// Route はリクエスト行に対する応答を表す
type Route struct {
	Status string
	File   string
	Sleep  bool
}

// Match はリクエスト行に対応する Route を返す
func Match(requestLine string) Route {
	switch requestLine {
	case RequestRoot:
		return Route{Status: StatusOK, File: HelloFile}
	case RequestSleep:
		return Route{Status: StatusOK, File: HelloFile, Sleep: true}
	default:
		return Route{Status: StatusNotFound, File: NotFoundFile}
	}
}

// Handler は 1 接続を処理する
// エラーはログに出すだけで panic しない
type Handler struct {
	Files       fs.FS
	SleepDelay  time.Duration
	ReadTimeout time.Duration
}

// Handle はリクエスト行を読み、ファイルを返して接続を閉じる
func (h *Handler) Handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	if err := h.serve(conn); err != nil {
		logger.Warn(remote, "connection failed: %v", err)
	}
}

func (h *Handler) serve(conn net.Conn) error {
	if h.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	line, err := readRequestLine(conn)
	switch {
	case errors.Is(err, ErrRequestLineTooLong):
		// どのルートにも一致しないので 404 を返す
		logger.Debug(conn.RemoteAddr().String(), "request line exceeds %d bytes", MaxRequestLine)
	case err != nil:
		return err
	}

	route := Match(line)
	if route.Sleep && h.SleepDelay > 0 {
		time.Sleep(h.SleepDelay)
	}

	body, err := fs.ReadFile(h.files(), route.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", route.File, err)
	}

	if _, err := io.WriteString(conn, FormatResponse(route.Status, body)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	logger.Debug(conn.RemoteAddr().String(), "%q -> %s", line, route.Status)
	return nil
}

func (h *Handler) files() fs.FS {
	if h.Files == nil {
		return DefaultFiles()
	}
	return h.Files
}

// readRequestLine は最初の 1 行を CRLF を除いて返す
// MaxRequestLine を超えたら読むのをやめて ErrRequestLineTooLong を返す
func readRequestLine(r io.Reader) (string, error) {
	line, err := bufio.NewReaderSize(r, MaxRequestLine).ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", ErrRequestLineTooLong
	}
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", fmt.Errorf("read request line: %w", err)
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// FormatResponse はステータス行、Content-Length、本文からレスポンスを組み立てる
func FormatResponse(status string, body []byte) string {
	return fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
}

package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const landingHTML = `<!DOCTYPE html>
<html lang="vi">
<head><meta charset="utf-8"><title>Sổ Nợ Bot</title></head>
<body>
<h1>Sổ Nợ Bot</h1>
<p>Trợ lý ghi nợ qua tin nhắn. Nhắn "help" cho bot để xem các lệnh.</p>
<p><a href="/privacy">Chính sách bảo mật</a></p>
</body>
</html>`

const privacyHTML = `<!DOCTYPE html>
<html lang="vi">
<head><meta charset="utf-8"><title>Chính sách bảo mật</title></head>
<body>
<h1>Chính sách bảo mật</h1>
<p>Bot chỉ lưu nội dung lệnh ghi nợ và tên gọi bạn tự đặt. Không chia sẻ dữ liệu cho bên thứ ba.</p>
<p>Gõ "xoa" để xoá giao dịch gần nhất của bạn.</p>
</body>
</html>`

// StaticFileServer serves files from dir when they exist and falls back to
// the built-in landing and privacy pages. The platform requires a reachable
// privacy URL before a bot can go live.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dir != "" {
			path := filepath.Join(dir, filepath.Clean(r.URL.Path))
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				w.Header().Set("Cache-Control", "public, max-age=2592000")
				http.ServeFile(w, r, path)
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/privacy" {
			w.Write([]byte(privacyHTML))
			return
		}
		w.Write([]byte(landingHTML))
	})
}

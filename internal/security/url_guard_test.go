package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewURLGuard()
	client := guard.NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(2 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be blocked")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"公開https", "https://api.jikan.moe/v4", false},
		{"公開http", "http://example.com/feed.xml", false},
		{"空文字列", "", true},
		{"ftpスキーム", "ftp://example.com", true},
		{"ループバックIP", "http://127.0.0.1/", true},
		{"プライベートIP", "http://192.168.1.10/", true},
		{"メタデータIP", "http://169.254.169.254/latest", true},
		{"localhost", "http://localhost:8080/", true},
		{"ホストなし", "https:///path", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImageURL(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"空文字列は削除として許可", "", false},
		{"同一オリジンのパス", "/avatars/default.png", false},
		{"公開https", "https://cdn.myanimelist.net/images/a.jpg", false},
		{"プロトコル相対URL", "//evil.example.com/a.png", true},
		{"http", "http://example.com/a.png", true},
		{"javascript", "javascript:alert(1)", true},
		{"https localhost", "https://localhost/a.png", true},
		{"改行を含むパス", "/a\r\nb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateImageURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

package transport

import (
	"testing"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

func TestSendOptions(t *testing.T) {
	params := tu.Message(tu.ID(42), "hello")

	WithReplyTo(7)(params)
	WithParseMode(telego.ModeHTML)(params)
	WithoutLinkPreview()(params)

	if params.ReplyParameters == nil || params.ReplyParameters.MessageID != 7 {
		t.Fatalf("reply parameters = %+v, want message id 7", params.ReplyParameters)
	}
	if params.ParseMode != telego.ModeHTML {
		t.Fatalf("parse mode = %q, want %q", params.ParseMode, telego.ModeHTML)
	}
	if params.LinkPreviewOptions == nil || !params.LinkPreviewOptions.IsDisabled {
		t.Fatal("expected link preview to be disabled")
	}
}

func TestNewTelegramRequiresToken(t *testing.T) {
	if _, err := NewTelegram("", "", nil); err == nil {
		t.Fatal("expected empty token to fail")
	}
	if _, err := NewTelegram("  ", "", nil); err == nil {
		t.Fatal("expected blank token to fail")
	}
}

func TestNewTelegramRejectsBadProxy(t *testing.T) {
	if _, err := NewTelegram("123:abc", "://bad", nil); err == nil {
		t.Fatal("expected invalid proxy URL to fail")
	}
}

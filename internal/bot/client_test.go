package bot

import (
	"errors"
	"testing"
	"time"

	"groupguard/internal/platform"

	tele "gopkg.in/telebot.v3"
)

func TestClassifyKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind platform.Kind
		msg  string
	}{
		{"restrict rights", tele.ErrNoRightsToRestrict, platform.KindPermission, "not enough rights to restrict/unrestrict chat member"},
		{"target admin", tele.ErrUserIsAdmin, platform.KindPermission, "user is an administrator of the chat"},
		{"kicked", tele.ErrKickedFromGroup, platform.KindPermission, "bot was kicked from the group chat"},
		{"chat missing", tele.ErrChatNotFound, platform.KindNotFound, "chat not found"},
		{"message gone", tele.ErrNotFoundToDelete, platform.KindNotFound, "message to delete not found"},
		{"unlisted", errors.New("telegram: Bad Request: PARTICIPANT_ID_INVALID (400)"), platform.KindNotFound, "PARTICIPANT_ID_INVALID"},
		{"server", errors.New("telegram: Internal Server Error (500)"), platform.KindTransient, "Internal Server Error"},
		{"other", errors.New("boom"), platform.KindUnknown, ""},
	}
	for _, tc := range cases {
		err := classify("op", tc.err)
		var perr *platform.Error
		if !errors.As(err, &perr) {
			t.Fatalf("%s: expected platform error, got %T", tc.name, err)
		}
		if perr.Kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s", tc.name, tc.kind, perr.Kind)
		}
		if perr.Message != tc.msg {
			t.Fatalf("%s: expected message %q, got %q", tc.name, tc.msg, perr.Message)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: original error must stay wrapped", tc.name)
		}
	}
	if classify("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestClassifyFlood(t *testing.T) {
	err := classify("send_message", tele.FloodError{RetryAfter: 7})
	if platform.KindOf(err) != platform.KindRateLimited {
		t.Fatalf("expected rate limited, got %s", platform.KindOf(err))
	}
	if platform.Describe(err) != "too many requests, retry after 7 seconds" {
		t.Fatalf("unexpected description %q", platform.Describe(err))
	}
}

func TestToRights(t *testing.T) {
	rights := toRights(platform.Permissions{SendMessages: true, SendMedia: false, PinMessages: true})
	if !rights.CanSendMessages || !rights.CanPinMessages {
		t.Fatalf("allowed rights lost: %+v", rights)
	}
	if rights.CanSendMedia || rights.CanSendPhotos || rights.CanSendVideos || rights.CanSendPolls {
		t.Fatalf("denied rights granted: %+v", rights)
	}
	media := toRights(platform.Permissions{SendMedia: true})
	if !media.CanSendPhotos || !media.CanSendDocuments || !media.CanSendVoiceNotes {
		t.Fatalf("granular media rights must follow SendMedia: %+v", media)
	}
}

func TestUntilDate(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	if untilDate(at) != 1_700_000_000 {
		t.Fatalf("unexpected until date")
	}
	if untilDate(time.Time{}) <= time.Now().Add(366*24*time.Hour).Unix() {
		t.Fatalf("zero until must map to a permanent restriction")
	}
}

func TestInlineMarkup(t *testing.T) {
	if inlineMarkup(nil) != nil {
		t.Fatalf("no buttons must send no markup")
	}
	markup := inlineMarkup([]platform.Button{{Text: "Remove warning", Unique: "unwarn", Data: "42"}})
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("expected a single button row, got %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.Text != "Remove warning" || btn.Unique != "unwarn" || btn.Data != "42" {
		t.Fatalf("unexpected button %+v", btn)
	}
}

func TestToMessage(t *testing.T) {
	tb, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	eve := &tele.User{ID: 2, FirstName: "Eve", Username: "eve"}
	c := tb.NewContext(tele.Update{Message: &tele.Message{
		ID:      10,
		Sender:  &tele.User{ID: 1, FirstName: "Alice"},
		Chat:    &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Caption: "look at this",
		ReplyTo: &tele.Message{ID: 9, Sender: eve},
	}})

	msg, ok := toMessage(c)
	if !ok {
		t.Fatalf("expected a message")
	}
	if msg.ChatID != -100 || !msg.Group || msg.MessageID != 10 || msg.From.ID != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Text != "look at this" {
		t.Fatalf("captions must be moderated like text, got %q", msg.Text)
	}
	if msg.ReplyTo == nil || msg.ReplyTo.ID != 2 || msg.ReplyTo.Name() != "Eve" {
		t.Fatalf("unexpected reply target %+v", msg.ReplyTo)
	}

	private := tb.NewContext(tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: 1},
		Chat:   &tele.Chat{ID: 1, Type: tele.ChatPrivate},
		Text:   "hi",
	}})
	if msg, _ := toMessage(private); msg.Group {
		t.Fatalf("private chats are not groups")
	}
}

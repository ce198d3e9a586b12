// Package platformtest provides an in-memory platform.Client that records calls.
package platformtest

import (
	"context"
	"sync"
	"time"

	"groupguard/internal/platform"
)

type Restriction struct {
	ChatID int64
	UserID int64
	Perms  platform.Permissions
	Until  time.Time
}

type Ban struct {
	ChatID int64
	UserID int64
	Until  time.Time
}

type Message struct {
	ChatID  int64
	Text    string
	Buttons []platform.Button
}

type Client struct {
	mu sync.Mutex

	ID     int64
	Admins map[int64]bool
	// Errors keyed by operation name ("restrict", "ban", "unban", "delete", "send", "admin").
	Errors map[string]error

	Restrictions []Restriction
	Bans         []Ban
	Unbans       []Ban
	Deleted      []int
	Messages     []Message
}

func New(botID int64, admins ...int64) *Client {
	c := &Client{ID: botID, Admins: make(map[int64]bool), Errors: make(map[string]error)}
	for _, id := range admins {
		c.Admins[id] = true
	}
	return c
}

func (c *Client) BotID() int64 { return c.ID }

func (c *Client) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[op] = err
}

func (c *Client) IsGroupAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["admin"]; err != nil {
		return false, err
	}
	return c.Admins[userID], nil
}

func (c *Client) RestrictUser(_ context.Context, chatID, userID int64, perms platform.Permissions, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["restrict"]; err != nil {
		return err
	}
	c.Restrictions = append(c.Restrictions, Restriction{ChatID: chatID, UserID: userID, Perms: perms, Until: until})
	return nil
}

func (c *Client) BanUser(_ context.Context, chatID, userID int64, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["ban"]; err != nil {
		return err
	}
	c.Bans = append(c.Bans, Ban{ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (c *Client) UnbanUser(_ context.Context, chatID, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["unban"]; err != nil {
		return err
	}
	c.Unbans = append(c.Unbans, Ban{ChatID: chatID, UserID: userID})
	return nil
}

func (c *Client) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["delete"]; err != nil {
		return err
	}
	c.Deleted = append(c.Deleted, messageID)
	return nil
}

func (c *Client) SendMessage(_ context.Context, chatID int64, text string, buttons ...platform.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Errors["send"]; err != nil {
		return err
	}
	c.Messages = append(c.Messages, Message{ChatID: chatID, Text: text, Buttons: buttons})
	return nil
}

func (c *Client) LastMessage() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Messages) == 0 {
		return Message{}
	}
	return c.Messages[len(c.Messages)-1]
}

func (c *Client) Counts() (restrictions, bans, unbans int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Restrictions), len(c.Bans), len(c.Unbans)
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/chunkdrive/chunkdrive"
)

const discordMaxSize = 24 << 20 // 24 MiB

// DiscordWebhook is a Source backed by a single Discord webhook's message
// attachments: each descriptor is a message id, and the data for that
// descriptor is the bytes of the message's first (and only) attachment.
// This talks to the webhook endpoints directly over net/http rather than
// through a bot session, since a webhook URL carries its own auth and
// never needs a gateway connection; discordgo is used only for its
// Message/MessageAttachment JSON shapes.
type DiscordWebhook struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordWebhook wraps the webhook at url (an "execute webhook" URL,
// already including the webhook id and token).
func NewDiscordWebhook(url string) *DiscordWebhook {
	return &DiscordWebhook{webhookURL: url, client: http.DefaultClient}
}

var _ chunkdrive.Source = (*DiscordWebhook)(nil)

func (d *DiscordWebhook) MaxSize() int { return discordMaxSize }

func (d *DiscordWebhook) payload(ctx context.Context, op, url string, data []byte) (*discordgo.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, _ := json.Marshal(map[string]any{
		"flags":       1 << 12, // IS_COMPONENTS_V2-adjacent: suppress embed generation
		"attachments": []map[string]any{{"id": 0, "filename": "d"}},
	})
	if err := w.WriteField("payload_json", string(meta)); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}
	part, err := w.CreateFormFile("files[0]", "d")
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}
	if err := w.Close(); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}

	method := http.MethodPost
	if url != d.webhookURL {
		method = http.MethodPatch
	}
	req, err := http.NewRequestWithContext(ctx, method, url+"?wait=true", &buf)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return d.do(op, req)
}

func (d *DiscordWebhook) do(op string, req *http.Request) (*discordgo.Message, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, chunkdrive.NewError(chunkdrive.KindNotFound, op, fmt.Errorf("discord: %s", resp.Status))
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, op, fmt.Errorf("discord: %s: %s", resp.Status, body))
	}
	if resp.ContentLength == 0 {
		return nil, nil
	}
	var msg discordgo.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindShape, op, err)
	}
	return &msg, nil
}

// Create posts an empty attachment and records the returned message id.
func (d *DiscordWebhook) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	msg, err := d.payload(ctx, "discord.create", d.webhookURL, []byte{})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.create", fmt.Errorf("webhook did not return a message (use ?wait=true)"))
	}
	return chunkdrive.Descriptor(msg.ID), nil
}

// Get fetches the message and follows its first attachment's URL.
func (d *DiscordWebhook) Get(ctx context.Context, desc chunkdrive.Descriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.webhookURL+"/messages/"+string(desc), nil)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.get", err)
	}
	msg, err := d.do("discord.get", req)
	if err != nil {
		return nil, err
	}
	if msg == nil || len(msg.Attachments) == 0 {
		return nil, chunkdrive.NewError(chunkdrive.KindShape, "discord.get", fmt.Errorf("message has no attachment"))
	}
	attReq, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.Attachments[0].URL, nil)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.get", err)
	}
	resp, err := d.client.Do(attReq)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.get", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.get", fmt.Errorf("attachment fetch: %s", resp.Status))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "discord.get", err)
	}
	return data, nil
}

// Put PATCHes the message, replacing its attachment with new bytes.
func (d *DiscordWebhook) Put(ctx context.Context, desc chunkdrive.Descriptor, data []byte) error {
	_, err := d.payload(ctx, "discord.put", d.webhookURL+"/messages/"+string(desc), data)
	return err
}

// Delete removes the message.
func (d *DiscordWebhook) Delete(ctx context.Context, desc chunkdrive.Descriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.webhookURL+"/messages/"+string(desc), nil)
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "discord.delete", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "discord.delete", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return chunkdrive.NewError(chunkdrive.KindTransport, "discord.delete", fmt.Errorf("discord: %s", resp.Status))
	}
	return nil
}

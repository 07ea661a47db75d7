package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/recap-reports/recap/internal/config"
)

const gmailUser = "me"

// GmailSource uses real Gmail labels through the Gmail API, the closest
// rendition of the label-swap contract.
type GmailSource struct {
	cfg      config.MailConfig
	srv      *gmail.Service
	sourceID string
	doneID   string
}

// OpenGmail runs the OAuth dance if needed and resolves the configured
// label names to IDs, creating the done label when it does not exist yet.
func OpenGmail(ctx context.Context, cfg config.MailConfig) (*GmailSource, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	httpClient, err := oauthClient(ctx, oauthConfig, cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	s := &GmailSource{cfg: cfg, srv: srv}
	if err := s.resolveLabels(); err != nil {
		return nil, err
	}
	return s, nil
}

func oauthClient(ctx context.Context, oauthConfig *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, oauthConfig)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			log.Printf("Warning: unable to save oauth token: %v", err)
		}
	}
	return oauthConfig.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)
	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func (s *GmailSource) resolveLabels() error {
	resp, err := s.srv.Users.Labels.List(gmailUser).Do()
	if err != nil {
		return fmt.Errorf("unable to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		switch {
		case strings.EqualFold(l.Name, s.cfg.SourceLabel):
			s.sourceID = l.Id
		case strings.EqualFold(l.Name, s.cfg.DoneLabel):
			s.doneID = l.Id
		}
	}
	if s.sourceID == "" {
		return fmt.Errorf("source label %q does not exist in this mailbox", s.cfg.SourceLabel)
	}
	if s.doneID == "" {
		created, err := s.srv.Users.Labels.Create(gmailUser, &gmail.Label{Name: s.cfg.DoneLabel}).Do()
		if err != nil {
			return fmt.Errorf("unable to create label %q: %w", s.cfg.DoneLabel, err)
		}
		log.Printf("Created label %q", s.cfg.DoneLabel)
		s.doneID = created.Id
	}
	return nil
}

// Search lists threads with the source label and without the done label,
// then reads the first message of each.
func (s *GmailSource) Search(ctx context.Context) ([]Thread, error) {
	query := fmt.Sprintf("label:%q -label:%q", s.cfg.SourceLabel, s.cfg.DoneLabel)
	return s.searchThreads(ctx, query)
}

func (s *GmailSource) searchThreads(ctx context.Context, query string) ([]Thread, error) {
	var threads []Thread
	pageToken := ""
	for {
		call := s.srv.Users.Threads.List(gmailUser).Q(query)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list threads: %w", err)
		}

		for _, th := range resp.Threads {
			t, err := s.fetchThread(ctx, th.Id)
			if err != nil {
				log.Printf("Warning: unable to fetch thread %s: %v", th.Id, err)
				continue
			}
			if t != nil {
				threads = append(threads, *t)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return threads, nil
}

func (s *GmailSource) fetchThread(ctx context.Context, id string) (*Thread, error) {
	full, err := s.srv.Users.Threads.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(full.Messages) == 0 {
		return nil, nil
	}

	// The meeting summary lives in the opening message, never a reply
	msg := full.Messages[0]
	t := &Thread{
		ID:         id,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h.Name == "Subject" {
				t.Subject = h.Value
			}
		}
		t.Body = plainTextBody(msg.Payload)
	}
	return t, nil
}

func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
		log.Printf("Error decoding base64 body for text/plain: %v", err)
	}
	for _, part := range payload.Parts {
		mt := strings.ToLower(part.MimeType)
		if strings.HasPrefix(mt, "text/") || strings.HasPrefix(mt, "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

// MarkDone swaps the thread's labels in one Modify call
func (s *GmailSource) MarkDone(ctx context.Context, t Thread) error {
	_, err := s.srv.Users.Threads.Modify(gmailUser, t.ID, &gmail.ModifyThreadRequest{
		AddLabelIds:    []string{s.doneID},
		RemoveLabelIds: []string{s.sourceID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to relabel thread %s: %w", t.ID, err)
	}
	return nil
}

// Reset swaps every done-labeled thread back to the source label
func (s *GmailSource) Reset(ctx context.Context) (int, error) {
	query := fmt.Sprintf("label:%q", s.cfg.DoneLabel)
	threads, err := s.searchThreads(ctx, query)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, t := range threads {
		_, err := s.srv.Users.Threads.Modify(gmailUser, t.ID, &gmail.ModifyThreadRequest{
			AddLabelIds:    []string{s.sourceID},
			RemoveLabelIds: []string{s.doneID},
		}).Context(ctx).Do()
		if err != nil {
			return moved, fmt.Errorf("unable to relabel thread %s: %w", t.ID, err)
		}
		moved++
	}
	return moved, nil
}

func (s *GmailSource) Close() error {
	return nil
}

package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"

	"github.com/recap-reports/recap/internal/config"
)

// IMAPSource treats folders as labels: threads sit in the source folder
// until ingested, then move to the done folder.
type IMAPSource struct {
	cfg    config.MailConfig
	client *client.Client
}

// OpenIMAP dials the server, logs in and makes sure the done folder exists
func OpenIMAP(ctx context.Context, cfg config.MailConfig) (*IMAPSource, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.Email, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	s := &IMAPSource{cfg: cfg, client: c}
	if err := s.ensureFolder(cfg.DoneLabel); err != nil {
		c.Logout()
		return nil, err
	}
	return s, nil
}

func (s *IMAPSource) ensureFolder(name string) error {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()

	exists := false
	for mbox := range mailboxes {
		if strings.EqualFold(mbox.Name, name) {
			exists = true
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.Create(name); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	log.Printf("Created folder %q", name)
	return nil
}

// Search fetches every message in the source folder. Anything already
// ingested has been moved out, so the folder's contents are exactly the
// unprocessed set.
func (s *IMAPSource) Search(ctx context.Context) ([]Thread, error) {
	return s.fetchFolder(s.cfg.SourceLabel)
}

func (s *IMAPSource) fetchFolder(folder string) ([]Thread, error) {
	mbox, err := s.client.Select(folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder %q: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	uids, err := s.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search folder %q: %w", folder, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek leaves the \Seen flag alone; folder membership, not read
	// state, is the processing marker.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var threads []Thread
	for msg := range messages {
		t, err := s.parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if t != nil {
			threads = append(threads, *t)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return threads, nil
}

func (s *IMAPSource) parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Thread, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	t := &Thread{
		ID:         strconv.FormatUint(uint64(msg.Uid), 10),
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}

	r := msg.GetBody(section)
	if r == nil {
		return t, nil
	}

	mr, err := gomail.CreateReader(r)
	if err != nil {
		return t, nil // Envelope only on parse error
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if h, ok := p.Header.(*gomail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			if strings.HasPrefix(ct, "text/plain") && t.Body == "" {
				body, _ := io.ReadAll(p.Body)
				t.Body = string(body)
			}
		}
	}

	return t, nil
}

// MarkDone moves the thread to the done folder. MOVE (RFC 6851) first,
// COPY+DELETE+EXPUNGE as fallback for servers without it.
func (s *IMAPSource) MarkDone(ctx context.Context, t Thread) error {
	uid, err := strconv.ParseUint(t.ID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid thread id %q: %w", t.ID, err)
	}
	return s.move(uint32(uid), s.cfg.SourceLabel, s.cfg.DoneLabel)
}

func (s *IMAPSource) move(uid uint32, from, to string) error {
	if _, err := s.client.Select(from, false); err != nil {
		return fmt.Errorf("failed to select folder %q: %w", from, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := s.client.UidMove(seqSet, to); err != nil {
		if err := s.client.UidCopy(seqSet, to); err != nil {
			return fmt.Errorf("failed to copy message to %q: %w", to, err)
		}
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.DeletedFlag}
		if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
			return fmt.Errorf("failed to mark message as deleted: %w", err)
		}
		if err := s.client.Expunge(nil); err != nil {
			return fmt.Errorf("failed to expunge deleted message: %w", err)
		}
	}
	return nil
}

// Reset moves every thread in the done folder back to the source folder
func (s *IMAPSource) Reset(ctx context.Context) (int, error) {
	threads, err := s.fetchFolder(s.cfg.DoneLabel)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, t := range threads {
		uid, err := strconv.ParseUint(t.ID, 10, 32)
		if err != nil {
			continue
		}
		if err := s.move(uint32(uid), s.cfg.DoneLabel, s.cfg.SourceLabel); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (s *IMAPSource) Close() error {
	return s.client.Logout()
}

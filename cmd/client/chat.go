package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/chatsync"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/pkg/soclient"
)

// ErrSessionEnded is returned when the server revokes the session mid-chat.
var ErrSessionEnded = errors.New("session ended, please log in again")

// screen prints full conversation snapshots.
type screen struct {
	mu   sync.Mutex
	out  io.Writer
	self string
}

func (s *screen) Materialize(key models.ConversationKey, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "\n--- conversation with %s (%d messages) ---\n", key.Other(s.self), len(msgs))
	for _, m := range msgs {
		fmt.Fprintln(s.out, formatMessage(s.self, m))
	}
	fmt.Fprint(s.out, "> ")
}

func (s *screen) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func formatMessage(self string, m models.Message) string {
	who := m.From
	if m.From == self {
		who = "me"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s:", m.Timestamp.Local().Format("15:04"), who)
	if m.Text != nil {
		b.WriteString(" " + *m.Text)
	}
	if a := m.Attachment; a != nil {
		fmt.Fprintf(&b, " 📎 %s (%s, %d bytes) %s", a.FileName, a.FileType, a.FileSize, a.FileURL)
	}
	return b.String()
}

// runChat polls the conversation with `with` and sends every input line.
// "/upload <path> [caption]" sends a file and "/quit" leaves.
func runChat(ctx context.Context, c *soclient.Client, with string, interval time.Duration, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scr := &screen{out: out, self: c.Self()}
	var ended bool
	var endedMu sync.Mutex
	poller := chatsync.NewPoller(chatsync.NewEngine(c), scr,
		chatsync.WithInterval(interval),
		chatsync.WithUnauthenticatedHook(func() {
			endedMu.Lock()
			ended = true
			endedMu.Unlock()
			c.Logout(context.Background())
			cancel()
		}),
	)
	defer poller.Close()
	poller.Open(ctx, models.NewConversationKey(c.Self(), with))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			endedMu.Lock()
			defer endedMu.Unlock()
			if ended {
				return ErrSessionEnded
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				c.Logout(context.Background())
				return nil
			}
			if err := handleLine(ctx, c, poller, scr, with, line); err != nil {
				if errors.Is(err, io.EOF) {
					c.Logout(context.Background())
					return nil
				}
				if errors.Is(err, models.ErrUnauthenticated) {
					// The hook has already fired and cancelled ctx.
					continue
				}
				scr.printf("! %v\n> ", err)
			}
		}
	}
}

func handleLine(ctx context.Context, c *soclient.Client, poller *chatsync.Poller, scr *screen, with, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return io.EOF
	case strings.HasPrefix(line, "/upload "):
		fields := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(line, "/upload ")), " ", 2)
		data, err := os.ReadFile(fields[0])
		if err != nil {
			return err
		}
		caption := ""
		if len(fields) == 2 {
			caption = fields[1]
		}
		_, err = poller.Send(ctx, func(ctx context.Context) (*models.Message, error) {
			return c.Upload(ctx, with, filepath.Base(fields[0]), data, caption)
		})
		return sendResult(scr, err)
	default:
		_, err := poller.Send(ctx, func(ctx context.Context) (*models.Message, error) {
			return c.SendText(ctx, with, line)
		})
		return sendResult(scr, err)
	}
}

func sendResult(scr *screen, err error) error {
	if errors.Is(err, chatsync.ErrRefreshFailed) {
		scr.printf("(sent, the conversation will refresh shortly)\n> ")
		return nil
	}
	return err
}

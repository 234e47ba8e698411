package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mentor_chat_server/pkg/chatclient"
	"mentor_chat_server/pkg/chatproto"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <peer>",
		Short: "Print the full message history with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			msgs, err := c.History(ctx, args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), c.Self(), m)
			}
			return nil
		},
	}
}

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations with their last message and unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			list, err := c.Conversations(ctx)
			if err != nil {
				return err
			}
			for _, s := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s unread=%-4d %s\n", s.OtherUserId, s.Unread, s.LastMessage.Text)
			}
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer>",
		Short: "Open an interactive conversation; each input line is sent as a message",
		Long: `Open an interactive conversation with a peer. Each input line is sent as a message.
Input is read line by line, so this client only shows the peer's typing indicator
and never sends one itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			conv, err := c.Open(openCtx, args[0])
			cancel()
			if err != nil {
				return err
			}
			defer conv.Close()

			out := cmd.OutOrStdout()
			for _, m := range conv.Messages() {
				printMessage(out, c.Self(), m)
			}
			fmt.Fprintf(out, "-- connected to %s, type to send, Ctrl-C to quit --\n", conv.Peer())

			go render(ctx, out, c.Self(), conv)

			lines := readLines(cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
					_, err := conv.Send(sendCtx, line)
					cancel()
					var sendErr *chatclient.SendError
					if errors.As(err, &sendErr) {
						fmt.Fprintf(out, "!! not sent (%v): %s\n", sendErr.Err, sendErr.Text)
					}
				}
			}
		},
	}
}

// render 在状态变化时打印新消息、对端输入状态和连接状态
func render(ctx context.Context, out io.Writer, self string, conv *chatclient.Conversation) {
	printed := make(map[string]bool)
	read := make(map[string]bool)
	for _, m := range conv.Messages() {
		printed[m.ID] = true
		read[m.ID] = m.ReadAt != nil
	}
	typing := false
	status := conv.Status()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conv.Updates():
		}
		for _, m := range conv.Messages() {
			if !printed[m.ID] {
				printed[m.ID] = true
				read[m.ID] = m.ReadAt != nil
				printMessage(out, self, m)
				continue
			}
			if m.SenderID == self && m.ReadAt != nil && !read[m.ID] {
				read[m.ID] = true
				fmt.Fprintf(out, "   (seen %s)\n", m.ReadAt.Local().Format("15:04"))
			}
		}
		if t := conv.PeerTyping(); t != typing {
			typing = t
			if t {
				fmt.Fprintf(out, "   %s is typing...\n", conv.Peer())
			}
		}
		if s := conv.Status(); s != status {
			status = s
			if err := conv.Err(); err != nil && s != chatclient.StatusReady {
				fmt.Fprintf(out, "-- %s: %v --\n", s, err)
			} else {
				fmt.Fprintf(out, "-- %s --\n", s)
			}
		}
	}
}

func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

func printMessage(out io.Writer, self string, m chatproto.Message) {
	who := m.SenderID
	if who == self {
		who = "me"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("01-02 15:04"), who, m.Text)
}

// chat_cli 命令行聊天客户端，用于联调实时通道
package main

import (
	"errors"
	"fmt"
	"os"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/pkg/chatclient"
	"mentor_chat_server/pkg/util/jwt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 全局参数
var (
	serverURL string
	token     string
	self      string
	verbose   bool
)

const envToken = "MENTOR_CHAT_TOKEN"

func main() {
	root := &cobra.Command{
		Use:           "chat_cli",
		Short:         "Command line client for the mentor chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:8000", "chat server base url")
	root.PersistentFlags().StringVarP(&token, "token", "t", "", "access token (default $"+envToken+", or signed locally with the configured secret)")
	root.PersistentFlags().StringVarP(&self, "as", "u", "", "identity to act as")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log client internals to stderr")

	root.AddCommand(tokenCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(conversationsCmd())
	root.AddCommand(chatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an access token with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := signToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func signToken(userId string) (string, error) {
	conf := config.GetConfig()
	if conf.JWTConfig.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	return jwt.GenerateAccessToken(userId)
}

// newClient 按全局参数构造客户端；未给出 token 时依次尝试环境变量和本地签发
func newClient() (*chatclient.Client, error) {
	if self == "" {
		return nil, errors.New("--as is required")
	}
	if token == "" {
		token = os.Getenv(envToken)
	}
	if token == "" {
		t, err := signToken(self)
		if err != nil {
			return nil, fmt.Errorf("no token given and local signing failed: %w", err)
		}
		token = t
	}

	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = l
	}
	return chatclient.New(chatclient.Config{
		BaseURL: serverURL,
		Token:   token,
		Self:    self,
		Logger:  log,
	})
}

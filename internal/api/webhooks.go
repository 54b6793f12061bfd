package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v68/github"
	"go.uber.org/zap"
)

const (
	maxWebhookBody = 10 << 20
	reviewTimeout  = 5 * time.Minute
)

// reviewableActions are the pull_request actions that trigger a review
var reviewableActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// GitHubWebhook verifies and dispatches GitHub events. Pull request reviews run
// in the background so GitHub gets its answer inside the delivery timeout.
func (s *Server) GitHubWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	var (
		payload []byte
		err     error
	)
	if secret := s.cfg.GitHubWebhookSecret; secret != "" {
		payload, err = github.ValidatePayload(c.Request, []byte(secret))
		if err != nil {
			s.log.Warn("rejected github webhook", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid signature"})
			return
		}
	} else {
		payload, err = io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Failed to read payload"})
			return
		}
	}

	eventType := github.WebHookType(c.Request)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		s.log.Debug("unhandled github event", zap.String("event", eventType), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		c.JSON(http.StatusOK, gin.H{"status": "pong"})

	case *github.PullRequestEvent:
		if !reviewableActions[e.GetAction()] {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if s.reviewer == nil {
			s.log.Warn("pull request event received but github integration is not configured")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		repo := e.GetRepo().GetFullName()
		number := e.GetNumber()
		if number == 0 {
			number = e.GetPullRequest().GetNumber()
		}
		title := e.GetPullRequest().GetTitle()

		s.log.Info("queued pull request review",
			zap.String("repo", repo),
			zap.Int("number", number),
			zap.String("action", e.GetAction()),
		)
		s.background(func() {
			ctx, cancel := context.WithTimeout(context.Background(), reviewTimeout)
			defer cancel()
			if err := s.reviewer.ReviewPullRequest(ctx, repo, number, title); err != nil {
				s.log.Error("pull request review failed",
					zap.String("repo", repo),
					zap.Int("number", number),
					zap.Error(err),
				)
			}
		})
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})

	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// WhatsAppVerify answers the Meta webhook verification handshake
func (s *Server) WhatsAppVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing parameters"})
		return
	}
	if mode != "subscribe" || s.cfg.WhatsAppVerifyToken == "" || token != s.cfg.WhatsAppVerifyToken {
		fail(c, http.StatusForbidden, "Verification failed")
		return
	}

	if n, err := strconv.Atoi(challenge); err == nil {
		c.JSON(http.StatusOK, n)
		return
	}
	c.String(http.StatusOK, challenge)
}

type whatsAppPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WhatsAppMessage logs the first inbound message of a delivery
func (s *Server) WhatsAppMessage(c *gin.Context) {
	var payload whatsAppPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.log.Debug("unparseable whatsapp payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	if len(payload.Entry) > 0 && len(payload.Entry[0].Changes) > 0 {
		if msgs := payload.Entry[0].Changes[0].Value.Messages; len(msgs) > 0 {
			s.log.Info("whatsapp message received",
				zap.String("from", msgs[0].From),
				zap.String("type", msgs[0].Type),
				zap.Int("length", len(msgs[0].Text.Body)),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

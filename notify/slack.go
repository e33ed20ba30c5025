// Package notify posts ops alerts to Slack. Everything here is optional: a
// nil *Slack is a safe no-op, so stations without a bot token lose nothing
// but the alerts.
package notify

import (
	"fmt"

	"github.com/slack-go/slack"
)

type Slack struct {
	client  *slack.Client
	station string
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

func NewSlack(token string, station string, options SlackOption) *Slack {
	if token == "" {
		return nil
	}
	return &Slack{client: slack.New(token), station: station, options: options}
}

func (s *Slack) postMessage(channelID, message string) error {
	if s == nil || channelID == "" {
		return nil
	}

	_, _, err := s.client.PostMessage(
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(message string) error {
	if s == nil {
		return nil
	}
	return s.postMessage(s.options.InfoChannelID, message)
}

func (s *Slack) Error(message string) error {
	if s == nil {
		return nil
	}
	return s.postMessage(s.options.ErrorChannelID, message)
}

// CheckInAbandoned implements queue.Alerter: a pending check-in exhausted
// its sync retries and was dropped. Someone should re-enter it by hand.
func (s *Slack) CheckInAbandoned(guestID int, station string, timestamp string) error {
	return s.Error(fmt.Sprintf(
		"[%s] check-in abandoned after repeated sync failures: guest %d at %s (%s)",
		s.stationName(), guestID, station, timestamp))
}

// LocalDataCleared reports an administrative reset.
func (s *Slack) LocalDataCleared() error {
	return s.Info(fmt.Sprintf("[%s] all local check-in data cleared by an administrator", s.stationName()))
}

func (s *Slack) stationName() string {
	if s == nil {
		return ""
	}
	return s.station
}

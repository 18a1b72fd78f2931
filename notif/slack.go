package notif

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/util"
)

var slackLog = util.NewContextLogger("notif")

type Slack struct {
	Channel     string       `json:"channel"`
	Username    string       `json:"username"`
	Text        string       `json:"text,omitempty"`
	Emoji       string       `json:"icon_emoji"`
	MarkDown    bool         `json:"mrkdwn"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color string `json:"color"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SlackNotifier posts messages to an incoming webhook.
type SlackNotifier struct {
	URL        string
	HTTPClient *http.Client
}

func buildSlackMessage(msg Message) *Slack {
	slack := &Slack{
		Channel:  msg.Channel,
		Username: "foremast",
		Emoji:    ":ship:",
		MarkDown: true,
	}
	slack.Text = fmt.Sprintf("*FOREMAST* _Pipeline update_ \n %s", msg.Application)

	attachment := Attachment{
		Color: "good",
		Title: msg.Pipeline,
		Text:  ":white_check_mark: pipeline uploaded",
	}
	if msg.Env != "" {
		attachment.Text = fmt.Sprintf(":white_check_mark: pipeline uploaded for %s", msg.Env)
	}
	slack.Attachments = append(slack.Attachments, attachment)
	return slack
}

func (n *SlackNotifier) PostMessage(ctx context.Context, msg Message) error {
	log := slackLog.InFunc("PostMessage")

	slack := buildSlackMessage(msg)
	data, err := json.Marshal(slack)
	if err != nil {
		return errors.Wrap(err, "encoding slack payload")
	}
	log.Debugf("struct = %+v, json = %s", slack, string(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewBuffer(data))
	if err != nil {
		return errors.Wrap(err, "building slack request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending data to slack")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(res.Body)
		return errors.Errorf("unable to notify slack: %s", string(body))
	}
	log.Infof("Slack notification sent to %s.", msg.Channel)
	return nil
}

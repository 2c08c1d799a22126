package sqs

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const attrBinding = "binding"

type sqsMessage struct {
	*types.Message
	done chan struct{}
}

func newMessage(m *types.Message) *sqsMessage {
	return &sqsMessage{m, make(chan struct{})}
}

func (m *sqsMessage) body() []byte {
	if m.Message.Body == nil {
		return nil
	}
	return []byte(*m.Message.Body)
}

func (m *sqsMessage) Binding() string {
	return m.attribute(attrBinding)
}

func (m *sqsMessage) Decode(out interface{}) error {
	return json.Unmarshal(m.body(), out)
}

func (m *sqsMessage) id() string {
	if m.MessageId == nil {
		return ""
	}
	return *m.MessageId
}

func (m *sqsMessage) attribute(key string) string {
	attr, ok := m.MessageAttributes[key]
	if !ok || attr.StringValue == nil {
		return ""
	}

	return *attr.StringValue
}

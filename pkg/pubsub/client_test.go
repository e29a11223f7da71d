package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualify(t *testing.T) {
	tests := []struct {
		name    string
		project string
		kind    string
		id      string
		want    string
	}{
		{name: "short topic", project: "tips-prod", kind: kindTopic, id: "tip-events", want: "projects/tips-prod/topics/tip-events"},
		{name: "full topic", project: "other", kind: kindTopic, id: "projects/tips-prod/topics/tip-events", want: "projects/tips-prod/topics/tip-events"},
		{name: "short subscription", project: "tips-prod", kind: kindSubscription, id: " tip-events-sub ", want: "projects/tips-prod/subscriptions/tip-events-sub"},
		{name: "topic path used as subscription", project: "tips-prod", kind: kindSubscription, id: "projects/tips-prod/topics/x", want: "projects/tips-prod/subscriptions/projects/tips-prod/topics/x"},
		{name: "blank", project: "tips-prod", kind: kindTopic, id: "  ", want: ""},
		{name: "no project", project: "", kind: kindTopic, id: "tip-events", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualify(tt.project, tt.kind, tt.id))
		})
	}
}

func TestUnconfiguredHandlesAreNil(t *testing.T) {
	c := &Client{}
	assert.Nil(t, c.TipEventsPublisher())
	assert.Nil(t, c.TipEventsSubscription())
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.TipEventsPublisher())
	assert.Nil(t, c.TipEventsSubscription())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(t.Context()), errNotInitialized)
}

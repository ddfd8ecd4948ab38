// Package conversation holds the long-lived per-customer conversation context
// shared by scoring, tagging and the pipeline.
package conversation

import (
	"slices"
	"time"
)

// Context is the running state kept for one customer across messages. It is
// created lazily on the first message and never deleted.
type Context struct {
	CustomerID       string    `json:"customerId"`
	InteractionCount int       `json:"interactionCount"`
	Topics           []string  `json:"topics"`
	LastInteraction  time.Time `json:"lastInteraction"`
	TotalLeadScore   int       `json:"totalLeadScore"`
	PreviousPurchase bool      `json:"previousPurchase"`
}

// NewContext returns the empty context of a customer that has not written yet.
func NewContext(customerID string) *Context {
	return &Context{CustomerID: customerID, Topics: []string{}}
}

// AddTopic records a topic once; empty topics are ignored.
func (c *Context) AddTopic(topic string) {
	if topic == "" || slices.Contains(c.Topics, topic) {
		return
	}
	c.Topics = append(c.Topics, topic)
}

// Record applies one processed message to the context.
func (c *Context) Record(at time.Time, leadScore int, purchased bool, topics ...string) {
	c.InteractionCount++
	c.LastInteraction = at
	c.TotalLeadScore += leadScore
	if purchased {
		c.PreviousPurchase = true
	}
	for _, t := range topics {
		c.AddTopic(t)
	}
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.Topics = append([]string{}, c.Topics...)
	return &out
}

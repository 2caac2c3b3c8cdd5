package wsserver

import "testing"

func TestClientSubscribeUnsubscribe(t *testing.T) {
	c := &client{subs: make(map[string]bool)}

	if c.isSubscribed("trades.stream") {
		t.Fatal("expected no subscription before subscribe")
	}
	c.subscribe("trades.stream")
	if !c.isSubscribed("trades.stream") {
		t.Fatal("expected subscription after subscribe")
	}
	c.unsubscribe("trades.stream")
	if c.isSubscribed("trades.stream") {
		t.Fatal("expected no subscription after unsubscribe")
	}
}

func TestHubPublishOnlyReachesSubscribedClients(t *testing.T) {
	h := NewHub(nil)
	subscribed := &client{send: make(chan []byte, 4), subs: map[string]bool{"trades.stream": true}}
	unsubscribed := &client{send: make(chan []byte, 4), subs: map[string]bool{}}
	h.register(subscribed)
	h.register(unsubscribed)

	h.Publish("trades.stream", []byte(`{"type":"trade"}`))

	select {
	case <-subscribed.send:
	default:
		t.Fatal("expected subscribed client to receive frame")
	}
	select {
	case <-unsubscribed.send:
		t.Fatal("unsubscribed client should not receive frame")
	default:
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub(nil)
	c := &client{send: make(chan []byte, 1), subs: map[string]bool{}}
	h.register(c)
	h.unregister(c)

	_, ok := <-c.send
	if ok {
		t.Fatal("expected send channel to be closed after unregister")
	}
}

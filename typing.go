package main

// TypingRelay forwards "is typing" signals. It keeps no state: expiry of the
// indicator is up to each receiving client, and repeated signals are
// forwarded as they arrive.
type TypingRelay struct {
	fabric *Fabric
}

func NewTypingRelay(fabric *Fabric) *TypingRelay {
	return &TypingRelay{fabric: fabric}
}

func (t *TypingRelay) SignalTyping(roomID, connID, name string) {
	t.fabric.Broadcast(roomID, EventUserTyping, UserTypingPayload{UserName: name}, connID)
}

package fabric

// Subscriber reads one topic as T. When nothing has arrived, or the
// latest payload does not decode, reads return the declared default.
type Subscriber[T Value] struct {
	sub Subscription
	def T
}

// NewSubscriber opens the typed subscriber for key on t with the
// declared default def.
func NewSubscriber[T Value](t Table, key string, def T) (*Subscriber[T], error) {
	sub, err := t.Subscribe(key)
	if err != nil {
		return nil, err
	}
	return &Subscriber[T]{sub: sub, def: def}, nil
}

// Get returns the current value of the topic.
func (s *Subscriber[T]) Get() T {
	data, ok := s.sub.Load()
	if !ok {
		return s.def
	}
	return Decode(data, s.def)
}

// Default returns the declared default.
func (s *Subscriber[T]) Default() T {
	return s.def
}

// OnUpdate registers fn for every delivery, decoded. fn runs on the
// binding's listener goroutine and must not block.
func (s *Subscriber[T]) OnUpdate(fn func(T)) {
	def := s.def
	s.sub.OnUpdate(func(data []byte) {
		fn(Decode(data, def))
	})
}

// Close detaches this subscriber's listeners.
func (s *Subscriber[T]) Close() error {
	return s.sub.Close()
}

// Publisher writes one topic as T.
type Publisher[T Value] struct {
	pub Publication
}

// NewPublisher opens the typed publisher for key on t.
func NewPublisher[T Value](t Table, key string) (*Publisher[T], error) {
	pub, err := t.Publisher(key)
	if err != nil {
		return nil, err
	}
	return &Publisher[T]{pub: pub}, nil
}

// Set publishes v. The write is enqueued fire-and-forget; the only
// error surfaced here is a value that cannot be encoded (non-finite
// floats) or a publication not yet live.
func (p *Publisher[T]) Set(v T) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return p.pub.Set(data)
}

// Close releases the publication handle.
func (p *Publisher[T]) Close() error {
	return p.pub.Close()
}

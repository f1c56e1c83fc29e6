package serialize

// Serializer converts a Src value into a Dst value.
type Serializer[Src any, Dst any] interface {
	Serialize(src Src) (Dst, error)
}

// SerializerFunc is a functional implementation of Serializer.
type SerializerFunc[Src any, Dst any] func(src Src) (Dst, error)

// Serialize implements Serializer.
func (fn SerializerFunc[Src, Dst]) Serialize(src Src) (Dst, error) { return fn(src) }

// Deserializer rebuilds a Src value from a Dst value.
type Deserializer[Src any, Dst any] interface {
	Deserialize(dst Dst) (Src, error)
}

// DeserializerFunc is a functional implementation of Deserializer.
type DeserializerFunc[Src any, Dst any] func(dst Dst) (Src, error)

// Deserialize implements Deserializer.
func (fn DeserializerFunc[Src, Dst]) Deserialize(dst Dst) (Src, error) { return fn(dst) }

// Serde serializes and deserializes between Src and Dst.
type Serde[Src any, Dst any] interface {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fused joins a Serializer and a Deserializer into a Serde.
type Fused[Src any, Dst any] struct {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fuse combines s and d into a Serde.
func Fuse[Src, Dst any](s Serializer[Src, Dst], d Deserializer[Src, Dst]) Fused[Src, Dst] {
	return Fused[Src, Dst]{Serializer: s, Deserializer: d}
}

// Serde returns the codec as a Serializable <-> envelope bytes serde, for
// transports written against the generic interfaces.
func (c *Codec) Serde() Fused[Serializable, []byte] {
	return Fuse[Serializable, []byte](
		SerializerFunc[Serializable, []byte](c.Marshal),
		DeserializerFunc[Serializable, []byte](c.Unmarshal),
	)
}

// ReductionSerde returns the codec as a Serializable <-> Reduction serde.
func (c *Codec) ReductionSerde() Fused[Serializable, Reduction] {
	return Fuse[Serializable, Reduction](
		SerializerFunc[Serializable, Reduction](c.Reduce),
		DeserializerFunc[Serializable, Reduction](func(r Reduction) (Serializable, error) {
			return r.Apply()
		}),
	)
}

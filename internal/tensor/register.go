package tensor

import "github.com/born-ml/frames/internal/serialize"

func init() {
	serialize.MustRegister(TensorTypeName, deserializeTensor)
	serialize.MustRegister(StateDictTypeName, deserializeStateDict)
}

var (
	_ serialize.Serializable = (*Tensor)(nil)
	_ serialize.Serializable = (*StateDict)(nil)
	_ serialize.Releaser     = (*Tensor)(nil)
	_ serialize.Releaser     = (*StateDict)(nil)
)

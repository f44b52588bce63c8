package types

// Framework identifies the execution backend a model targets.
type Framework string

const (
	FrameworkLlamaCpp Framework = "llamacpp"
	FrameworkONNX     Framework = "onnx"
	FrameworkCoreML   Framework = "coreml"
	FrameworkMLX      Framework = "mlx"
)

// Model represents a discoverable or loadable model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Execution framework inferred from the file format.
	// example: llamacpp
	Framework Framework `json:"framework" example:"llamacpp"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Estimated resident memory footprint in bytes when loaded.
	// example: 1258291200
	EstMemoryBytes int64 `json:"est_memory_bytes" example:"1258291200"`
}

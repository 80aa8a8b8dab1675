package chat

type ChunkResult struct {
	ChunkID string
	Index   int
	Start   int
	End     int
	Content string
	Score   float64
}

type Source struct {
	ChunkID string
	Start   int
	End     int
	Snippet string
	Score   float64
}

type Response struct {
	Answer  string
	Sources []Source
}

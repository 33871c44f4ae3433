package expr

// LogExpr is Expr<Log>: a single LOG0-4 entry, recorded as a Word so it
// can live in VM.Logs alongside everything else the engine tracks
// symbolically — the topics and data may all be unresolved.
type LogExpr struct {
	Addr   Word
	Topics []Word
	Data   Buf
}

func (LogExpr) isWord() {}

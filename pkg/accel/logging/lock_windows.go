package logging

// Windows has no flock equivalent that fits the append-only log pattern;
// the in-process mutex already serializes writers.
func (w *RotatingWriter) lock() error { return nil }

func (w *RotatingWriter) unlock() {}

package sim

// Frame describes one synthetic stack frame of a simulated workload: the
// program counter inside the owning function and the frame size in bytes.
type Frame struct {
	PC   uint32
	Size uint32
}

// SimulateStack installs a workload that walks up and down a call chain, one
// frame per resume. Every occupied frame byte is written with a value
// different from the sentinel so that scans see it as touched.
func (t *Target) SimulateStack(stackTop uint32, frames []Frame, sentinel byte) {
	if len(frames) == 0 {
		return
	}
	step := 0
	t.OnResume = func(t *Target) {
		depth := triangle(step, len(frames))
		step++

		sp := stackTop
		var pc uint32
		for i := 0; i < depth; i++ {
			f := frames[i]
			for addr := sp - f.Size; addr < sp; addr++ {
				b := byte(addr)
				if b == sentinel {
					b++
				}
				_ = t.WriteByte(addr, b)
			}
			sp -= f.Size
			pc = f.PC
		}
		t.sp = sp
		t.pc = pc
	}
}

// triangle oscillates between depth 1 and n: 1, 2, .., n, n-1, .., 2, 1, ...
func triangle(step, n int) int {
	if n == 1 {
		return 1
	}
	period := 2*n - 2
	idx := step % period
	if idx < n {
		return idx + 1
	}
	return 2*n - 1 - idx
}

package source

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"

// GPIOLine maps a digital input line to a feature. The sample is 1 when the
// line is active and 0 otherwise; Invert treats a low line as active.
type GPIOLine struct {
	Feature string
	Offset  int
	Invert  bool
}

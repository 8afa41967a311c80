package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// sysfsRoot is the PWM class directory; tests point it at a temp dir.
var sysfsRoot = "/sys/class/pwm"

// DefaultPWMPeriod gives a 5kHz carrier, well above visible flicker.
const DefaultPWMPeriod = 200 * time.Microsecond

// PWM drives one hardware PWM channel through sysfs. Duty is expressed in
// 1/255 of the period.
type PWM struct {
	dir    string
	period time.Duration
}

// OpenPWM exports channel on chip (e.g. "pwmchip0") and enables it at 0%.
func OpenPWM(chip string, channel int, period time.Duration) (*PWM, error) {
	chipDir := filepath.Join(sysfsRoot, chip)
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeAttr(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm channel %d: %w", channel, err)
		}
	}

	p := &PWM{dir: dir, period: period}
	if err := writeAttr(filepath.Join(dir, "period"), strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return nil, fmt.Errorf("set pwm period: %w", err)
	}
	if err := p.SetDuty(0); err != nil {
		return nil, err
	}
	if err := writeAttr(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("enable pwm: %w", err)
	}
	return p, nil
}

// SetDuty sets the duty cycle to duty/255.
func (p *PWM) SetDuty(duty uint8) error {
	ns := p.period.Nanoseconds() * int64(duty) / 255
	if err := writeAttr(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(ns, 10)); err != nil {
		return fmt.Errorf("set pwm duty: %w", err)
	}
	return nil
}

// Close turns the output off and disables the channel.
func (p *PWM) Close() error {
	if err := p.SetDuty(0); err != nil {
		return err
	}
	if err := writeAttr(filepath.Join(p.dir, "enable"), "0"); err != nil {
		return fmt.Errorf("disable pwm: %w", err)
	}
	return nil
}

func writeAttr(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

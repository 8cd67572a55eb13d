package recorder

import "fmt"

// FormatElapsed 把秒数格式化为 MM:SS，分钟不足两位时补零
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

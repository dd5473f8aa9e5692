package parser

var romanValues = map[byte]int{
	'I': 1,
	'V': 5,
	'X': 10,
	'L': 50,
	'C': 100,
	'D': 500,
	'M': 1000,
}

// romanToArabic 按标准减法记数法转换罗马数字，非法输入返回 0。
func romanToArabic(s string) int {
	if s == "" {
		return 0
	}
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total
}

// isRoman 是否全部由罗马数字字符组成
func isRoman(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if _, ok := romanValues[s[i]]; !ok {
			return false
		}
	}
	return true
}

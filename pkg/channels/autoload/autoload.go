// Package autoload 以 blank import 的方式註冊所有內建 Channels
package autoload

import (
	_ "fingerbot/pkg/channels/onebot"
	_ "fingerbot/pkg/channels/telegram"
)

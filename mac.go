// 由主网卡的 MAC 地址派生账本的实例标识
package bpfsutxo

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// virtualNICPrefixes 是虚拟网卡的名称前缀，这些网卡的地址在不同机器之间可能重复
var virtualNICPrefixes = []string{"vmnet", "vboxnet", "docker", "veth", "br-"}

// nicCandidate 是参与选择的网卡
type nicCandidate struct {
	name     string
	mac      net.HardwareAddr
	up       bool
	loopback bool
	hasIPv4  bool
}

// score 返回网卡的权重，不可用的网卡返回 -1
func (c nicCandidate) score() int {
	if len(c.mac) == 0 || c.loopback {
		return -1
	}

	weight := 0
	virtual := false
	for _, prefix := range virtualNICPrefixes {
		if strings.HasPrefix(c.name, prefix) {
			virtual = true
			break
		}
	}
	if !virtual {
		weight += 10
	}
	if c.up {
		weight += 10
	}
	if c.hasIPv4 {
		weight += 10
	}
	return weight
}

// pickPrimaryNIC 返回权重最高的网卡地址，权重相同时保留先出现的
func pickPrimaryNIC(candidates []nicCandidate) (net.HardwareAddr, bool) {
	best, bestScore := -1, -1
	for i, c := range candidates {
		if s := c.score(); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < 0 {
		return nil, false
	}
	return candidates[best].mac, true
}

// listNICs 收集本机全部网卡的信息
func listNICs() ([]nicCandidate, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	candidates := make([]nicCandidate, 0, len(interfaces))
	for _, iface := range interfaces {
		c := nicCandidate{
			name:     iface.Name,
			mac:      iface.HardwareAddr,
			up:       iface.Flags&net.FlagUp != 0,
			loopback: iface.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
					c.hasIPv4 = true
					break
				}
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// defaultInstanceId 返回主网卡 MAC 地址的十六进制形式，不含分隔符，可以直接用于文件名
func defaultInstanceId() (string, error) {
	candidates, err := listNICs()
	if err != nil {
		return "", err
	}
	mac, ok := pickPrimaryNIC(candidates)
	if !ok {
		return "", fmt.Errorf("no MAC address found")
	}
	return hex.EncodeToString(mac), nil
}

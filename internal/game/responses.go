package game

import (
	"bytes"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Response 玩家在某阶段的回复
type Response struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// ResponseEntry 有序映射中的一项
type ResponseEntry struct {
	Player int
	Response
}

// Responses 玩家编号 -> 回复 的有序映射，保持到达顺序
//
// JSON 编码为对象，键的顺序即到达顺序；解码时按文档中的键顺序恢复。
type Responses []ResponseEntry

// Get 获取某玩家的回复
func (r Responses) Get(player int) (Response, bool) {
	for _, e := range r {
		if e.Player == player {
			return e.Response, true
		}
	}
	return Response{}, false
}

// Set 写入回复：已存在则原位覆盖，否则追加到末尾
func (r *Responses) Set(player int, resp Response) {
	for i := range *r {
		if (*r)[i].Player == player {
			(*r)[i].Response = resp
			return
		}
	}
	*r = append(*r, ResponseEntry{Player: player, Response: resp})
}

// MarshalJSON 按到达顺序输出对象
func (r Responses) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, Response](len(r))
	for _, e := range r {
		om.Set(strconv.Itoa(e.Player), e.Response)
	}
	return om.MarshalJSON()
}

// UnmarshalJSON 按文档中的键顺序恢复
func (r *Responses) UnmarshalJSON(data []byte) error {
	out := Responses{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = out
		return nil
	}

	om := orderedmap.New[string, Response]()
	if err := om.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("responses: 需要JSON对象: %w", err)
	}
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		player, err := strconv.Atoi(pair.Key)
		if err != nil {
			return fmt.Errorf("responses: 非法的玩家编号 %q", pair.Key)
		}
		out.Set(player, pair.Value)
	}
	*r = out
	return nil
}

package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	reqs []*larkIm.CreateMessageReq
	resp *larkIm.CreateMessageResp
	err  error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func TestSendText(t *testing.T) {
	id := "om_1"
	fake := &fakeMessages{resp: &larkIm.CreateMessageResp{Data: &larkIm.CreateMessageRespData{MessageId: &id}}}
	m := &Messenger{messages: fake, logger: zap.NewNop()}

	require.NoError(t, m.SendText(context.Background(), "ou_1", `PO "#7" needs you`))
	require.Len(t, fake.reqs, 1)

	body := fake.reqs[0].Body
	assert.Equal(t, "ou_1", *body.ReceiveId)
	assert.Equal(t, "text", *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, `PO "#7" needs you`, content["text"])
}

func TestSendText_Failures(t *testing.T) {
	m := &Messenger{messages: &fakeMessages{}, logger: zap.NewNop()}
	assert.Error(t, m.SendText(context.Background(), "", "hi"))
	assert.Error(t, m.SendText(context.Background(), "ou_1", ""))

	m.messages = &fakeMessages{err: errors.New("timeout")}
	assert.ErrorContains(t, m.SendText(context.Background(), "ou_1", "hi"), "timeout")

	m.messages = &fakeMessages{resp: &larkIm.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "bot not in chat"}}}
	assert.ErrorContains(t, m.SendText(context.Background(), "ou_1", "hi"), "230001")
}

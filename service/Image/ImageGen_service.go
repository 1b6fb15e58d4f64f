package Image

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Replicate 上的 Flux LoRA 训练器与推理模型
const (
	loraTrainerModel   = "ostris/flux-dev-lora-trainer"
	loraTrainerVersion = "d995297071a44dcb72244e6c19462f9670cb8a5632df8e2d8e583f8688e4b7e5"
	fluxDevModel       = "black-forest-labs/flux-dev"

	defaultReplicateBaseURL = "https://api.replicate.com/v1"
)

// TrainingInput 微调任务的提交参数
type TrainingInput struct {
	InputImagesURL   string // 训练图片zip包的公开URL
	TriggerWord      string
	DestinationModel string // 目标模型标识，如 "alter-ego/mina-42"
	Steps            int
}

// TrainingJob 微调任务状态
type TrainingJob struct {
	ID      string
	Status  string // starting | processing | succeeded | failed | canceled
	Logs    string // 截断到最后500字符
	Version string // 成功后产出的模型版本
}

// ImageGenClientInterface 图像生成服务接口：提交/查询微调任务、LoRA推理
type ImageGenClientInterface interface {
	StartTraining(input TrainingInput) (*TrainingJob, error)
	GetTraining(trainingID string) (*TrainingJob, error)
	GenerateWithLora(loraModel, prompt string) ([]string, error)
}

// GlobalImageGenClient 全局ImageGenClient实例
var GlobalImageGenClient ImageGenClientInterface

// replicateClient Replicate HTTP API 客户端
type replicateClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewReplicateClient(token string) ImageGenClientInterface {
	client := &replicateClient{
		token:   token,
		baseURL: defaultReplicateBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	GlobalImageGenClient = client
	return client
}

func (c *replicateClient) doJSON(method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求图像服务失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("图像服务返回错误: HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}

type trainingResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Logs   string `json:"logs"`
	Output struct {
		Version string `json:"version"`
	} `json:"output"`
}

func (r *trainingResponse) toJob() *TrainingJob {
	logs := r.Logs
	if len(logs) > 500 {
		logs = logs[len(logs)-500:]
	}
	return &TrainingJob{
		ID:      r.ID,
		Status:  r.Status,
		Logs:    logs,
		Version: r.Output.Version,
	}
}

// StartTraining 提交LoRA微调任务
func (c *replicateClient) StartTraining(input TrainingInput) (*TrainingJob, error) {
	if input.InputImagesURL == "" || input.DestinationModel == "" {
		return nil, errors.New("训练参数不完整")
	}
	steps := input.Steps
	if steps <= 0 {
		steps = 1000
	}

	url := fmt.Sprintf("%s/models/%s/versions/%s/trainings", c.baseURL, loraTrainerModel, loraTrainerVersion)
	body := map[string]interface{}{
		"destination": input.DestinationModel,
		"input": map[string]interface{}{
			"input_images":  input.InputImagesURL,
			"trigger_word":  input.TriggerWord,
			"steps":         steps,
			"autocaption":   true,
			"resolution":    "512,768,1024",
			"batch_size":    1,
			"learning_rate": 0.0004,
		},
	}

	var resp trainingResponse
	if err := c.doJSON(http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}
	return resp.toJob(), nil
}

// GetTraining 查询微调任务状态
func (c *replicateClient) GetTraining(trainingID string) (*TrainingJob, error) {
	if trainingID == "" {
		return nil, errors.New("训练ID不能为空")
	}

	var resp trainingResponse
	url := fmt.Sprintf("%s/trainings/%s", c.baseURL, trainingID)
	if err := c.doJSON(http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toJob(), nil
}

// GenerateWithLora 使用训练好的LoRA模型做一次推理，返回产出图片URL列表
func (c *replicateClient) GenerateWithLora(loraModel, prompt string) ([]string, error) {
	if loraModel == "" {
		return nil, errors.New("LoRA模型标识不能为空")
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, fluxDevModel)
	body := map[string]interface{}{
		"input": map[string]interface{}{
			"prompt":              prompt,
			"lora_weights":        loraModel,
			"num_outputs":         1,
			"guidance":            3.5,
			"num_inference_steps": 28,
			"output_format":       "png",
		},
	}

	var resp struct {
		Status string   `json:"status"`
		Output []string `json:"output"`
		Error  string   `json:"error"`
	}
	if err := c.doJSONWithPrefer(url, body, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("推理失败: %s", resp.Error)
	}
	if len(resp.Output) == 0 {
		return nil, errors.New("推理未返回图片")
	}
	return resp.Output, nil
}

// doJSONWithPrefer 同 doJSON，但带 Prefer: wait 头让服务端同步返回推理结果
func (c *replicateClient) doJSONWithPrefer(url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求图像服务失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("图像服务返回错误: HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return json.Unmarshal(respBody, out)
}

// DownloadImage 下载生成的图片内容
func DownloadImage(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("下载图片失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片失败: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

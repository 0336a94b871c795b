// Package contextbudget 将连接到对话节点的参考块合并为有界长度的上下文文本
package contextbudget

import (
	"fmt"
	"regexp"
	"strings"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/pkg/utils"
)

const (
	DefaultTotalBudget    = 100000
	DefaultPerBlockBudget = 10000

	// adCopyMaxChars 超过该长度的文本不再视为示例广告文案
	adCopyMaxChars = 2000
	// truncationReserve 部分截断时为收尾保留的字符数
	truncationReserve = 100
	ellipsis          = "..."
)

const (
	Preamble = "=== CONNECTED REFERENCE MATERIALS ===\n" +
		"The following materials are connected to this conversation. " +
		"Analyze them for style, tone, structure and key facts. Do not copy them verbatim.\n\n"
	Closing = "=== END OF REFERENCE MATERIALS ===\n" +
		"Use these materials as inspiration and context. Create original content that matches the style and goals they demonstrate."

	labelExampleAdCopy = "[EXAMPLE AD COPY - draw inspiration from this style, do not copy]\n"
	labelReference     = "[REFERENCE CONTENT]\n"
	labelDocument      = "[DOCUMENT CONTENT]\n"
	imageInstruction   = "Analyze the visual style, composition, colors and mood of this image.\n"
)

var adPattern = regexp.MustCompile(`(?i)\b(headline|cta|call to action|free)\b|\d+(\.\d+)?\s?%`)

// Result 合并结果
type Result struct {
	Text string
	// Included 至少写入了标题行的块数
	Included int
	// Skipped 因预算耗尽被整体跳过的块数
	Skipped int
	// Truncated 是否发生了预算截断
	Truncated bool
	// BodyChars 正文字符数（不含固定前后缀）
	BodyChars int
}

// Overhead 固定前后缀与省略提示的字符数
func Overhead(skipped int) int {
	return utils.RuneLen(Preamble) + utils.RuneLen(Closing) + utils.RuneLen(omittedNote(skipped))
}

func omittedNote(skipped int) string {
	if skipped <= 0 {
		return ""
	}
	return fmt.Sprintf("\n[Note: %d connected block(s) omitted because the reference context size limit was reached]", skipped)
}

// IsExampleAdCopy 短文本且包含广告特征词时视为示例文案
func IsExampleAdCopy(content string) bool {
	return utils.RuneLen(content) < adCopyMaxChars && adPattern.MatchString(content)
}

// Assemble 按连接顺序合并参考块
// 纯函数：不修改入参，相同输入得到相同输出
func Assemble(blocks []entity.ConnectedBlock, totalBudget, perBlockBudget int) Result {
	if len(blocks) == 0 {
		return Result{}
	}
	if totalBudget <= 0 {
		totalBudget = DefaultTotalBudget
	}
	if perBlockBudget <= 0 {
		perBlockBudget = DefaultPerBlockBudget
	}

	a := &assembler{total: totalBudget, perBlock: perBlockBudget}
	for i, b := range blocks {
		if !a.block(i, b) {
			a.res.Skipped += len(blocks) - i - 1
			if !a.wroteHeader {
				a.res.Skipped++
			}
			break
		}
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString(a.body.String())
	sb.WriteString(Closing)
	sb.WriteString(omittedNote(a.res.Skipped))

	a.res.Text = sb.String()
	a.res.BodyChars = a.running
	return a.res
}

type assembler struct {
	total    int
	perBlock int
	running  int
	body     strings.Builder
	res      Result

	wroteHeader bool
}

func (a *assembler) fits(piece string) bool {
	return a.running+utils.RuneLen(piece) <= a.total
}

func (a *assembler) write(piece string) {
	a.body.WriteString(piece)
	a.running += utils.RuneLen(piece)
}

// block 渲染单个块，返回 false 表示预算耗尽需停止
func (a *assembler) block(idx int, b entity.ConnectedBlock) bool {
	a.wroteHeader = false

	title := strings.TrimSpace(b.BlockTitle())
	if title == "" {
		title = "Untitled"
	}
	header := fmt.Sprintf("--- Block %d: %s (%s) ---\n", idx+1, title, b.Kind())
	if !a.fits(header) {
		return false
	}
	a.write(header)
	a.wroteHeader = true
	a.res.Included++

	switch v := b.(type) {
	case entity.GroupBlock:
		// 组的指令即风格说明，不再单独输出指令行
		line := "[GROUP] The blocks that follow belong to this group.\n"
		if instr := strings.TrimSpace(v.InstructionPrompt); instr != "" {
			line = "[GROUP] Style notes for the blocks that follow: " + instr + "\n"
		}
		if !a.fits(line) {
			return a.endBlock()
		}
		a.write(line)
		return a.endBlock()

	case entity.ImageBlock:
		line := "[IMAGE] " + v.Source() + "\n" + imageInstruction
		if !a.fits(line) {
			return a.endBlock()
		}
		a.write(line)

	case entity.DocumentBlock:
		if !v.Parsed() {
			ref := v.FilePath
			if ref == "" {
				ref = title
			}
			note := "[DOCUMENT] " + ref + " has not been parsed yet, so its content cannot be read.\n"
			if !a.fits(note) {
				return a.endBlock()
			}
			a.write(note)
			break
		}
		if !a.content(labelDocument, v.Content, true) {
			return false
		}

	case entity.TextBlock:
		if !a.textLike(v.Content, "") {
			return false
		}

	case entity.URLBlock:
		if !a.textLike(v.Content, v.URL) {
			return false
		}
	}

	if instr := strings.TrimSpace(b.Instruction()); instr != "" {
		line := "Instruction: " + instr + "\n"
		if a.fits(line) {
			a.write(line)
		}
	}
	return a.endBlock()
}

func (a *assembler) endBlock() bool {
	if a.fits("\n") {
		a.write("\n")
	}
	return true
}

func (a *assembler) textLike(content, url string) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		if url == "" {
			return true
		}
		line := "[URL] " + url + "\n"
		if a.fits(line) {
			a.write(line)
		}
		return true
	}
	if url != "" {
		line := "Source: " + url + "\n"
		if a.fits(line) {
			a.write(line)
		}
	}
	label := labelReference
	if IsExampleAdCopy(content) {
		label = labelExampleAdCopy
	}
	return a.content(label, content, false)
}

// content 写入正文，超出单块预算时截断；超出总预算时写入部分内容并停止
func (a *assembler) content(label, content string, document bool) bool {
	body := content
	if utils.RuneLen(body) > a.perBlock {
		body = utils.TruncateByRunes(body, a.perBlock) + ellipsis
		if document {
			body += fmt.Sprintf("\n[Document truncated at %d characters]", a.perBlock)
		}
		a.res.Truncated = true
	}
	piece := label + body + "\n"
	if a.fits(piece) {
		a.write(piece)
		return true
	}

	// 首个超预算的正文：填满剩余预算（扣除保留量）后停止
	a.res.Truncated = true
	room := a.total - a.running - truncationReserve - utils.RuneLen(label) - utils.RuneLen(ellipsis) - 1
	if room > 0 {
		a.write(label + utils.TruncateByRunes(body, room) + ellipsis + "\n")
	}
	return false
}
